package analysis

import (
	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
)

func node(id, parentID string, position int) coding.Node {
	n := coding.Node{ID: id, ProjectID: "project", Name: id, Color: coding.DefaultNodeColor, Position: position}
	if parentID != "" {
		parent := parentID
		n.ParentID = &parent
	}
	return n
}

func segment(id, documentID, nodeID string, start, end int, preview string) coding.SegmentRow {
	return coding.SegmentRow{
		ID:             id,
		DocumentID:     documentID,
		NodeID:         nodeID,
		SegmentStart:   start,
		SegmentEnd:     end,
		ContentPreview: preview,
		DocumentTitle:  "Doc " + documentID,
		NodeName:       nodeID,
	}
}
