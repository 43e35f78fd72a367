package coding

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates a referenced project, node, document, participant or segment does not exist,
	// or exists in a different project.
	ErrNotFound = errors.New("coding: not found")
	// ErrCycle indicates a reparent that would make a node its own ancestor.
	ErrCycle = errors.New("coding: cycle")
	// ErrInvalidRange indicates a segment range with start >= end, a negative bound, or an end past the content.
	ErrInvalidRange = errors.New("coding: invalid range")
	// ErrDuplicateName indicates a project name collision.
	ErrDuplicateName = errors.New("coding: duplicate name")
	// ErrIntegrity indicates a backing store failure not covered by the other errors.
	ErrIntegrity = errors.New("coding: integrity violation")
	// ErrValidation indicates malformed input such as an empty name or an incomplete sibling list.
	ErrValidation = errors.New("coding: validation failed")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceError carries a stable operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew                = "coding.service.new"
	opCreateProject             = "coding.create_project"
	opRenameProject             = "coding.rename_project"
	opGetProject                = "coding.get_project"
	opListProjects              = "coding.list_projects"
	opDeleteProject             = "coding.delete_project"
	opCreateParticipant         = "coding.create_participant"
	opUpdateParticipant         = "coding.update_participant"
	opListParticipants          = "coding.list_participants"
	opDeleteParticipant         = "coding.delete_participant"
	opCreateDocument            = "coding.create_document"
	opGetDocument               = "coding.get_document"
	opListDocuments             = "coding.list_documents"
	opUpdateDocumentContent     = "coding.update_document_content"
	opRenameDocument            = "coding.rename_document"
	opAssignDocumentParticipant = "coding.assign_document_participant"
	opDeleteDocument            = "coding.delete_document"
	opCreateNode                = "coding.create_node"
	opRenameNode                = "coding.rename_node"
	opRecolorNode               = "coding.recolor_node"
	opReorderSiblings           = "coding.reorder_siblings"
	opMoveNode                  = "coding.move_node"
	opDeleteNode                = "coding.delete_node"
	opListNodes                 = "coding.list_nodes"
	opGetNode                   = "coding.get_node"
	opAddSegment                = "coding.add_segment"
	opDeleteSegment             = "coding.delete_segment"
	opListSegments              = "coding.list_segments"
	opSnapshot                  = "coding.snapshot"
	opWordCount                 = "coding.word_count"
)

const (
	reasonMissingDatabase     = "missing_database"
	reasonMissingIDProvider   = "missing_id_provider"
	reasonInvalidInput        = "invalid_input"
	reasonIDGenerationFailed  = "id_generation_failed"
	reasonProjectNotFound     = "project_not_found"
	reasonParentNotFound      = "parent_not_found"
	reasonNodeNotFound        = "node_not_found"
	reasonDocumentNotFound    = "document_not_found"
	reasonParticipantNotFound = "participant_not_found"
	reasonSegmentNotFound     = "segment_not_found"
	reasonDuplicateName       = "duplicate_name"
	reasonCycle               = "cycle"
	reasonInvalidRange        = "invalid_range"
	reasonIncompleteGroup     = "incomplete_sibling_group"
	reasonQueryFailed         = "query_failed"
	reasonInsertFailed        = "insert_failed"
	reasonUpdateFailed        = "update_failed"
	reasonDeleteFailed        = "delete_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// storeFailure marks an unexpected store error as an integrity violation while keeping the original cause.
func storeFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIntegrity) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIntegrity, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ErrorCode extracts the service code from err, or an empty string.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}
