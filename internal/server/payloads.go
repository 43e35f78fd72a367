package server

import (
	"github.com/MarcoPoloResearchLab/nodeflow/internal/analysis"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
)

type projectRequestPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type projectPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

func newProjectPayload(project coding.Project) projectPayload {
	return projectPayload{
		ID:               project.ID,
		Name:             project.Name,
		Description:      project.Description,
		CreatedAtSeconds: project.CreatedAtSeconds,
	}
}

type participantRequestPayload struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

type participantPayload struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Details   string `json:"details"`
}

func newParticipantPayload(participant coding.Participant) participantPayload {
	return participantPayload{
		ID:        participant.ID,
		ProjectID: participant.ProjectID,
		Name:      participant.Name,
		Details:   participant.Details,
	}
}

type createDocumentPayload struct {
	ParticipantID *string `json:"participant_id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
}

func (p createDocumentPayload) toRequest(projectID string) coding.CreateDocumentRequest {
	return coding.CreateDocumentRequest{
		ProjectID:     projectID,
		ParticipantID: p.ParticipantID,
		Title:         p.Title,
		Content:       p.Content,
	}
}

type documentTitlePayload struct {
	Title string `json:"title"`
}

type documentContentPayload struct {
	Content string `json:"content"`
}

type documentParticipantPayload struct {
	ParticipantID *string `json:"participant_id"`
}

type documentPayload struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	ParticipantID   *string `json:"participant_id"`
	ParticipantName *string `json:"participant_name,omitempty"`
	Title           string  `json:"title"`
	Content         string  `json:"content,omitempty"`
	WordCount       int     `json:"word_count"`
}

func newDocumentPayload(document coding.Document) documentPayload {
	return documentPayload{
		ID:            document.ID,
		ProjectID:     document.ProjectID,
		ParticipantID: document.ParticipantID,
		Title:         document.Title,
		Content:       document.Content,
		WordCount:     document.WordCount(),
	}
}

func newDocumentSummaryPayload(summary coding.DocumentSummary) documentPayload {
	return documentPayload{
		ID:              summary.ID,
		ProjectID:       summary.ProjectID,
		ParticipantID:   summary.ParticipantID,
		ParticipantName: summary.ParticipantName,
		Title:           summary.Title,
		WordCount:       summary.WordCount,
	}
}

type createNodePayload struct {
	ParentID *string `json:"parent_id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
}

func (p createNodePayload) toRequest(projectID string) coding.CreateNodeRequest {
	return coding.CreateNodeRequest{
		ProjectID: projectID,
		ParentID:  p.ParentID,
		Name:      p.Name,
		Color:     p.Color,
	}
}

type nodeNamePayload struct {
	Name string `json:"name"`
}

type nodeColorPayload struct {
	Color string `json:"color"`
}

type moveNodePayload struct {
	ParentID *string `json:"parent_id"`
}

type reorderPayload struct {
	NodeIDs []string `json:"node_ids"`
}

type nodePayload struct {
	ID               string  `json:"id"`
	ProjectID        string  `json:"project_id"`
	ParentID         *string `json:"parent_id"`
	Name             string  `json:"name"`
	Color            string  `json:"color"`
	Position         int     `json:"position"`
	CreatedAtSeconds int64   `json:"created_at_s"`
}

func newNodePayload(node coding.Node) nodePayload {
	return nodePayload{
		ID:               node.ID,
		ProjectID:        node.ProjectID,
		ParentID:         node.ParentID,
		Name:             node.Name,
		Color:            node.Color,
		Position:         node.Position,
		CreatedAtSeconds: node.CreatedAtSeconds,
	}
}

type nodeDeletionPayload struct {
	NodeIDs         []string `json:"node_ids"`
	SegmentsDeleted int64    `json:"segments_deleted"`
}

type addSegmentPayload struct {
	NodeID        string  `json:"node_id"`
	ParticipantID *string `json:"participant_id"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Preview       string  `json:"preview"`
}

func (p addSegmentPayload) toRequest(documentID string) coding.AddSegmentRequest {
	return coding.AddSegmentRequest{
		DocumentID:    documentID,
		NodeID:        p.NodeID,
		ParticipantID: p.ParticipantID,
		Start:         p.Start,
		End:           p.End,
		Preview:       p.Preview,
	}
}

type segmentPayload struct {
	ID               string  `json:"id"`
	DocumentID       string  `json:"document_id"`
	NodeID           string  `json:"node_id"`
	ParticipantID    *string `json:"participant_id"`
	Start            int     `json:"start"`
	End              int     `json:"end"`
	ContentPreview   string  `json:"content_preview"`
	CreatedAtSeconds int64   `json:"created_at_s,omitempty"`
	DocumentTitle    string  `json:"document_title,omitempty"`
	NodeName         string  `json:"node_name,omitempty"`
	NodeColor        string  `json:"node_color,omitempty"`
	ParticipantName  *string `json:"participant_name,omitempty"`
}

func newSegmentPayload(segment coding.CodedSegment) segmentPayload {
	return segmentPayload{
		ID:               segment.ID,
		DocumentID:       segment.DocumentID,
		NodeID:           segment.NodeID,
		ParticipantID:    segment.ParticipantID,
		Start:            segment.SegmentStart,
		End:              segment.SegmentEnd,
		ContentPreview:   segment.ContentPreview,
		CreatedAtSeconds: segment.CreatedAtSeconds,
	}
}

func newSegmentRowPayloads(rows []coding.SegmentRow) []segmentPayload {
	payloads := make([]segmentPayload, 0, len(rows))
	for _, row := range rows {
		payloads = append(payloads, segmentPayload{
			ID:              row.ID,
			DocumentID:      row.DocumentID,
			NodeID:          row.NodeID,
			ParticipantID:   row.ParticipantID,
			Start:           row.SegmentStart,
			End:             row.SegmentEnd,
			ContentPreview:  row.ContentPreview,
			DocumentTitle:   row.DocumentTitle,
			NodeName:        row.NodeName,
			NodeColor:       row.NodeColor,
			ParticipantName: row.ParticipantName,
		})
	}
	return payloads
}

type overlapPayload struct {
	NodeIDs []string `json:"node_ids"`
	Counts  [][]int  `json:"counts"`
}

func newOverlapPayload(matrix analysis.Matrix) overlapPayload {
	nodeIDs := matrix.NodeIDs
	if nodeIDs == nil {
		nodeIDs = []string{}
	}
	return overlapPayload{NodeIDs: nodeIDs, Counts: matrix.Rows()}
}
