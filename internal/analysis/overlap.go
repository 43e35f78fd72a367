package analysis

import (
	"sort"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
)

// Matrix is a symmetric node by node co-occurrence table. Off-diagonal cells count pairs
// of overlapping segments within one document. The diagonal holds the number of segments
// tagged with the node.
type Matrix struct {
	NodeIDs []string
	index   map[string]int
	counts  [][]int
}

// Count returns the cell for a pair of nodes, or zero when either is unknown.
func (m Matrix) Count(a, b string) int {
	row, ok := m.index[a]
	if !ok {
		return 0
	}
	column, ok := m.index[b]
	if !ok {
		return 0
	}
	return m.counts[row][column]
}

// Rows returns a copy of the table in NodeIDs order.
func (m Matrix) Rows() [][]int {
	rows := make([][]int, len(m.counts))
	for i, row := range m.counts {
		rows[i] = append([]int(nil), row...)
	}
	return rows
}

// Overlap builds the co-occurrence matrix of a snapshot. Each document is swept once in
// start order, keeping only the segments still open at the current start.
func Overlap(snapshot coding.Snapshot) Matrix {
	forest := snapshot.Forest()
	visits := forest.PreOrder("")
	matrix := Matrix{
		NodeIDs: make([]string, 0, len(visits)),
		index:   make(map[string]int, len(visits)),
		counts:  make([][]int, len(visits)),
	}
	for position, visit := range visits {
		matrix.NodeIDs = append(matrix.NodeIDs, visit.ID)
		matrix.index[visit.ID] = position
		matrix.counts[position] = make([]int, len(visits))
	}

	byDocument := make(map[string][]coding.SegmentRow)
	for _, segment := range snapshot.Segments {
		position, ok := matrix.index[segment.NodeID]
		if !ok {
			continue
		}
		matrix.counts[position][position]++
		byDocument[segment.DocumentID] = append(byDocument[segment.DocumentID], segment)
	}
	for _, segments := range byDocument {
		matrix.sweep(segments)
	}
	return matrix
}

func (m Matrix) sweep(segments []coding.SegmentRow) {
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].SegmentStart != segments[j].SegmentStart {
			return segments[i].SegmentStart < segments[j].SegmentStart
		}
		return segments[i].SegmentEnd < segments[j].SegmentEnd
	})
	var open []coding.SegmentRow
	for _, current := range segments {
		kept := open[:0]
		for _, candidate := range open {
			if candidate.SegmentEnd > current.SegmentStart {
				kept = append(kept, candidate)
			}
		}
		open = kept
		for _, candidate := range open {
			if candidate.NodeID == current.NodeID {
				continue
			}
			a, b := m.index[candidate.NodeID], m.index[current.NodeID]
			m.counts[a][b]++
			m.counts[b][a]++
		}
		open = append(open, current)
	}
}
