package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
)

const unattributed = "N/A"

// OutlineSegment is one quotation listed under a codebook entry.
type OutlineSegment struct {
	Participant   string `json:"participant"`
	Text          string `json:"text"`
	DocumentTitle string `json:"document_title"`
}

// OutlineEntry is one node of the codebook with its hierarchical number such as "1.2.".
type OutlineEntry struct {
	Number   string           `json:"number"`
	Depth    int              `json:"depth"`
	NodeID   string           `json:"node_id"`
	Name     string           `json:"name"`
	Color    string           `json:"color"`
	Segments []OutlineSegment `json:"segments"`
}

// Outline lists the taxonomy parents first with its in-scope segments. A non-empty rootID
// restricts the outline to that node family, numbered from 1, and must name a node of the snapshot.
func Outline(snapshot coding.Snapshot, rootID string) ([]OutlineEntry, error) {
	forest := snapshot.Forest()
	if rootID != "" {
		if _, ok := forest.Node(rootID); !ok {
			return nil, fmt.Errorf("%w: node %s", coding.ErrNotFound, rootID)
		}
	}

	segmentsByNode := make(map[string][]OutlineSegment)
	for _, segment := range snapshot.Segments {
		participant := unattributed
		if segment.ParticipantName != nil {
			participant = *segment.ParticipantName
		}
		segmentsByNode[segment.NodeID] = append(segmentsByNode[segment.NodeID], OutlineSegment{
			Participant:   participant,
			Text:          segment.ContentPreview,
			DocumentTitle: segment.DocumentTitle,
		})
	}

	visits := forest.PreOrder(rootID)
	entries := make([]OutlineEntry, 0, len(visits))
	for _, visit := range visits {
		node, _ := forest.Node(visit.ID)
		segments := segmentsByNode[visit.ID]
		if segments == nil {
			segments = []OutlineSegment{}
		}
		entries = append(entries, OutlineEntry{
			Number:   number(visit.Path),
			Depth:    visit.Depth,
			NodeID:   visit.ID,
			Name:     node.Name,
			Color:    node.Color,
			Segments: segments,
		})
	}
	return entries, nil
}

func number(path []int) string {
	var builder strings.Builder
	for _, index := range path {
		builder.WriteString(strconv.Itoa(index))
		builder.WriteByte('.')
	}
	return builder.String()
}
