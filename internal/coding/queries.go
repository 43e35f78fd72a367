package coding

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const segmentRowSelect = `SELECT s.id, s.document_id, s.node_id, s.participant_id, s.segment_start, s.segment_end,
	s.content_preview, d.title AS document_title, n.name AS node_name, n.color AS node_color,
	p.name AS participant_name
FROM coded_segments s
JOIN documents d ON s.document_id = d.id
JOIN nodes n ON s.node_id = n.id
LEFT JOIN participants p ON s.participant_id = p.id`

const segmentRowOrder = ` ORDER BY d.title, s.document_id, s.segment_start, s.segment_end, s.id`

const (
	segmentsByDocument    = segmentRowSelect + ` WHERE s.document_id = ?` + segmentRowOrder
	segmentsByProject     = segmentRowSelect + ` WHERE d.project_id = ?` + segmentRowOrder
	segmentsByParticipant = segmentRowSelect + ` WHERE d.project_id = ? AND s.participant_id = ?` + segmentRowOrder
	segmentsByNodes       = segmentRowSelect + ` WHERE d.project_id = ? AND s.node_id IN (?)` + segmentRowOrder

	nodesByProject = `SELECT id, project_id, parent_id, name, color, position, created_at_s
FROM nodes WHERE project_id = ?`

	contentByProject     = `SELECT content FROM documents WHERE project_id = ?`
	contentByDocument    = `SELECT content FROM documents WHERE id = ? AND project_id = ?`
	contentByParticipant = `SELECT content FROM documents WHERE project_id = ? AND participant_id = ?`

	projectExists     = `SELECT COUNT(1) FROM projects WHERE id = ?`
	documentExists    = `SELECT COUNT(1) FROM documents WHERE id = ? AND project_id = ?`
	participantExists = `SELECT COUNT(1) FROM participants WHERE id = ? AND project_id = ?`
	documentProject   = `SELECT project_id FROM documents WHERE id = ?`
)

// ListSegmentsForDocument returns the display-ready segments of one document ordered by offset.
func (s *Service) ListSegmentsForDocument(ctx context.Context, documentID string) ([]SegmentRow, error) {
	if err := s.ready(opListSegments); err != nil {
		return nil, err
	}
	if err := validateIdentifier(fieldDocumentID, documentID); err != nil {
		return nil, s.fail(opListSegments, reasonInvalidInput, err)
	}
	var projectID string
	err := s.reader.GetContext(ctx, &projectID, documentProject, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.fail(opListSegments, reasonDocumentNotFound, notFound("document", documentID))
	}
	if err != nil {
		return nil, s.fail(opListSegments, reasonQueryFailed, storeFailure(err), zap.String(fieldDocumentID, documentID))
	}
	return s.selectSegments(ctx, s.reader, segmentsByDocument, documentID)
}

// ListSegmentsForProject returns every segment of a project.
func (s *Service) ListSegmentsForProject(ctx context.Context, projectID string) ([]SegmentRow, error) {
	if err := s.ready(opListSegments); err != nil {
		return nil, err
	}
	if err := s.requireRecord(ctx, s.reader, opListSegments, projectExists, reasonProjectNotFound, "project", projectID); err != nil {
		return nil, err
	}
	return s.selectSegments(ctx, s.reader, segmentsByProject, projectID)
}

// ListSegmentsForParticipant returns the segments of a project attributed to a participant.
func (s *Service) ListSegmentsForParticipant(ctx context.Context, projectID, participantID string) ([]SegmentRow, error) {
	if err := s.ready(opListSegments); err != nil {
		return nil, err
	}
	if err := s.requireRecord(ctx, s.reader, opListSegments, projectExists, reasonProjectNotFound, "project", projectID); err != nil {
		return nil, err
	}
	if err := s.requireRecord(ctx, s.reader, opListSegments, participantExists, reasonParticipantNotFound, "participant", participantID, projectID); err != nil {
		return nil, err
	}
	return s.selectSegments(ctx, s.reader, segmentsByParticipant, projectID, participantID)
}

// ListSegmentsForNodeFamily returns the segments tagged with nodeID or any of its descendants.
func (s *Service) ListSegmentsForNodeFamily(ctx context.Context, projectID, nodeID string) ([]SegmentRow, error) {
	if err := s.ready(opListSegments); err != nil {
		return nil, err
	}
	if err := s.requireRecord(ctx, s.reader, opListSegments, projectExists, reasonProjectNotFound, "project", projectID); err != nil {
		return nil, err
	}
	nodes, err := s.selectNodes(ctx, s.reader, projectID)
	if err != nil {
		return nil, err
	}
	family := NewForest(nodes).Family(nodeID)
	if len(family) == 0 {
		return nil, s.fail(opListSegments, reasonNodeNotFound, notFound("node", nodeID))
	}
	query, args, err := sqlx.In(segmentsByNodes, projectID, family)
	if err != nil {
		return nil, s.fail(opListSegments, reasonQueryFailed, storeFailure(err), zap.String(fieldNodeID, nodeID))
	}
	return s.selectSegments(ctx, s.reader, s.reader.Rebind(query), args...)
}

// ProjectWordCount returns the number of words across all documents of a project.
func (s *Service) ProjectWordCount(ctx context.Context, projectID string) (int, error) {
	if err := s.ready(opWordCount); err != nil {
		return 0, err
	}
	if err := s.requireRecord(ctx, s.reader, opWordCount, projectExists, reasonProjectNotFound, "project", projectID); err != nil {
		return 0, err
	}
	return s.countWords(ctx, s.reader, contentByProject, projectID)
}

// ParticipantWordCount returns the number of words in the documents attributed to a participant.
func (s *Service) ParticipantWordCount(ctx context.Context, projectID, participantID string) (int, error) {
	if err := s.ready(opWordCount); err != nil {
		return 0, err
	}
	if err := s.requireRecord(ctx, s.reader, opWordCount, participantExists, reasonParticipantNotFound, "participant", participantID, projectID); err != nil {
		return 0, err
	}
	return s.countWords(ctx, s.reader, contentByParticipant, projectID, participantID)
}

func (s *Service) selectSegments(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]SegmentRow, error) {
	rows := []SegmentRow{}
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, s.fail(opListSegments, reasonQueryFailed, storeFailure(err))
	}
	return rows, nil
}

func (s *Service) selectNodes(ctx context.Context, q sqlx.QueryerContext, projectID string) ([]Node, error) {
	var nodes []Node
	if err := sqlx.SelectContext(ctx, q, &nodes, nodesByProject, projectID); err != nil {
		return nil, s.fail(opListNodes, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	return nodes, nil
}

func (s *Service) countWords(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int, error) {
	var contents []string
	if err := sqlx.SelectContext(ctx, q, &contents, query, args...); err != nil {
		return 0, s.fail(opWordCount, reasonQueryFailed, storeFailure(err))
	}
	total := 0
	for _, content := range contents {
		total += CountWords(content)
	}
	return total, nil
}

// requireRecord fails with ErrNotFound unless the existence query counts a row.
// The first argument is the id being looked up.
func (s *Service) requireRecord(ctx context.Context, q sqlx.QueryerContext, operation, query, missingReason, kind string, args ...string) error {
	if len(args) == 0 {
		return nil
	}
	if err := validateIdentifier(kind+"_id", args[0]); err != nil {
		return s.fail(operation, reasonInvalidInput, err)
	}
	bound := make([]any, len(args))
	for i, arg := range args {
		bound[i] = arg
	}
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, bound...); err != nil {
		return s.fail(operation, reasonQueryFailed, storeFailure(err))
	}
	if count == 0 {
		return s.fail(operation, missingReason, notFound(kind, args[0]))
	}
	return nil
}
