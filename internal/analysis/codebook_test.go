package analysis

import (
	"testing"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/stretchr/testify/require"
)

func TestOutlineNumbersNodesHierarchically(t *testing.T) {
	participant := "Alex"
	quoted := segment("s1", "d1", "a1", 0, 5, "hello")
	quoted.ParticipantName = &participant
	snapshot := coding.Snapshot{
		Nodes: []coding.Node{
			node("a", "", 0),
			node("b", "", 1),
			node("a1", "a", 0),
			node("a2", "a", 1),
			node("a2x", "a2", 0),
		},
		Segments: []coding.SegmentRow{quoted, segment("s2", "d1", "b", 6, 11, "world")},
	}

	entries, err := Outline(snapshot, "")
	require.NoError(t, err)
	numbers := make([]string, 0, len(entries))
	for _, entry := range entries {
		numbers = append(numbers, entry.Number+entry.NodeID)
	}
	require.Equal(t, []string{"1.a", "1.1.a1", "1.2.a2", "1.2.1.a2x", "2.b"}, numbers)
	require.Equal(t, []OutlineSegment{{Participant: "Alex", Text: "hello", DocumentTitle: "Doc d1"}}, entries[1].Segments)
	require.Equal(t, "N/A", entries[4].Segments[0].Participant)
	require.NotNil(t, entries[0].Segments)
	require.Equal(t, 2, entries[3].Depth)

	family, err := Outline(snapshot, "a2")
	require.NoError(t, err)
	require.Len(t, family, 2)
	require.Equal(t, "1.", family[0].Number)
	require.Equal(t, "1.1.", family[1].Number)
}

func TestOutlineRejectsUnknownRoot(t *testing.T) {
	snapshot := coding.Snapshot{Nodes: []coding.Node{node("a", "", 0)}}

	entries, err := Outline(snapshot, "missing")
	require.ErrorIs(t, err, coding.ErrNotFound)
	require.Nil(t, entries)

	empty, err := Outline(coding.Snapshot{}, "")
	require.NoError(t, err)
	require.Empty(t, empty)
}
