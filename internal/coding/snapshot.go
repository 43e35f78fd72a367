package coding

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ScopeKind names the subset of a project that statistics are computed over.
type ScopeKind string

const (
	ScopeProject     ScopeKind = "project"
	ScopeDocument    ScopeKind = "document"
	ScopeParticipant ScopeKind = "participant"
)

// Scope selects a whole project, one of its documents, or one of its participants.
// DocumentID and ParticipantID are mutually exclusive.
type Scope struct {
	ProjectID     string
	DocumentID    string
	ParticipantID string
}

func ProjectScope(projectID string) Scope {
	return Scope{ProjectID: projectID}
}

func DocumentScope(projectID, documentID string) Scope {
	return Scope{ProjectID: projectID, DocumentID: documentID}
}

func ParticipantScope(projectID, participantID string) Scope {
	return Scope{ProjectID: projectID, ParticipantID: participantID}
}

// Kind reports which subset the scope selects.
func (s Scope) Kind() ScopeKind {
	switch {
	case s.DocumentID != "":
		return ScopeDocument
	case s.ParticipantID != "":
		return ScopeParticipant
	default:
		return ScopeProject
	}
}

// Validate checks that the scope names a project and at most one narrowing filter.
func (s Scope) Validate() error {
	if err := validateIdentifier(fieldProjectID, s.ProjectID); err != nil {
		return err
	}
	if s.DocumentID != "" && s.ParticipantID != "" {
		return fmt.Errorf("%w: document and participant scopes are mutually exclusive", ErrValidation)
	}
	return nil
}

// Key identifies the scope for deduplication of concurrent computations.
func (s Scope) Key() string {
	parts := []string{string(s.Kind()), s.ProjectID}
	switch s.Kind() {
	case ScopeDocument:
		parts = append(parts, s.DocumentID)
	case ScopeParticipant:
		parts = append(parts, s.ParticipantID)
	}
	return strings.Join(parts, ":")
}

// Snapshot is a consistent read of a project's taxonomy and the in-scope segments,
// stamped with the project generation observed before the read started.
type Snapshot struct {
	Scope      Scope
	Generation int64
	Nodes      []Node
	Segments   []SegmentRow
	TotalWords int
}

// Forest indexes the snapshot nodes.
func (s Snapshot) Forest() *Forest {
	return NewForest(s.Nodes)
}

// Snapshot reads everything the analyzers need for a scope inside one read transaction.
func (s *Service) Snapshot(ctx context.Context, scope Scope) (Snapshot, error) {
	if err := s.ready(opSnapshot); err != nil {
		return Snapshot{}, err
	}
	if err := scope.Validate(); err != nil {
		return Snapshot{}, s.fail(opSnapshot, reasonInvalidInput, err)
	}

	snapshot := Snapshot{Scope: scope, Generation: s.Generation(scope.ProjectID)}
	tx, err := s.reader.BeginTxx(ctx, nil)
	if err != nil {
		return Snapshot{}, s.fail(opSnapshot, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, scope.ProjectID))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.readSnapshot(ctx, tx, &snapshot); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, s.fail(opSnapshot, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, scope.ProjectID))
	}
	return snapshot, nil
}

func (s *Service) readSnapshot(ctx context.Context, tx *sqlx.Tx, snapshot *Snapshot) error {
	scope := snapshot.Scope
	if err := s.requireRecord(ctx, tx, opSnapshot, projectExists, reasonProjectNotFound, "project", scope.ProjectID); err != nil {
		return err
	}

	var (
		segmentQuery, contentQuery string
		segmentArgs, contentArgs   []any
	)
	switch scope.Kind() {
	case ScopeDocument:
		if err := s.requireRecord(ctx, tx, opSnapshot, documentExists, reasonDocumentNotFound, "document", scope.DocumentID, scope.ProjectID); err != nil {
			return err
		}
		segmentQuery, segmentArgs = segmentsByDocument, []any{scope.DocumentID}
		contentQuery, contentArgs = contentByDocument, []any{scope.DocumentID, scope.ProjectID}
	case ScopeParticipant:
		if err := s.requireRecord(ctx, tx, opSnapshot, participantExists, reasonParticipantNotFound, "participant", scope.ParticipantID, scope.ProjectID); err != nil {
			return err
		}
		segmentQuery, segmentArgs = segmentsByParticipant, []any{scope.ProjectID, scope.ParticipantID}
		contentQuery, contentArgs = contentByParticipant, []any{scope.ProjectID, scope.ParticipantID}
	default:
		segmentQuery, segmentArgs = segmentsByProject, []any{scope.ProjectID}
		contentQuery, contentArgs = contentByProject, []any{scope.ProjectID}
	}

	nodes, err := s.selectNodes(ctx, tx, scope.ProjectID)
	if err != nil {
		return err
	}
	segments, err := s.selectSegments(ctx, tx, segmentQuery, segmentArgs...)
	if err != nil {
		return err
	}
	totalWords, err := s.countWords(ctx, tx, contentQuery, contentArgs...)
	if err != nil {
		return err
	}

	snapshot.Nodes = nodes
	snapshot.Segments = segments
	snapshot.TotalWords = totalWords
	return nil
}
