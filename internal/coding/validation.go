package coding

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	fieldProjectID     = "project_id"
	fieldParticipantID = "participant_id"
	fieldDocumentID    = "document_id"
	fieldNodeID        = "node_id"
	fieldParentID      = "parent_id"
	fieldSegmentID     = "segment_id"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var (
	identifierRules = []validation.Rule{validation.Required, validation.RuneLength(1, maxIdentifierLength)}
	nameRules       = []validation.Rule{validation.Required, validation.RuneLength(1, maxNameLength)}
	colorRules      = []validation.Rule{validation.Match(colorPattern).Error("must be a #RRGGBB color")}
)

// CreateNodeRequest describes a new node appended to its sibling group.
type CreateNodeRequest struct {
	ProjectID string
	ParentID  *string
	Name      string
	Color     string
}

func (r *CreateNodeRequest) normalize() {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Name = strings.TrimSpace(r.Name)
	r.Color = strings.TrimSpace(r.Color)
	if r.Color == "" {
		r.Color = DefaultNodeColor
	}
	r.ParentID = normalizeOptionalID(r.ParentID)
}

// Validate checks the request fields.
func (r CreateNodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, identifierRules...),
		validation.Field(&r.Name, nameRules...),
		validation.Field(&r.Color, colorRules...),
	)
}

// CreateDocumentRequest describes a new document of a project.
type CreateDocumentRequest struct {
	ProjectID     string
	ParticipantID *string
	Title         string
	Content       string
}

func (r *CreateDocumentRequest) normalize() {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Title = strings.TrimSpace(r.Title)
	r.ParticipantID = normalizeOptionalID(r.ParticipantID)
}

// Validate checks the request fields.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, identifierRules...),
		validation.Field(&r.Title, nameRules...),
	)
}

// AddSegmentRequest describes a node applied to a rune range of a document.
// An empty Preview is filled with the covered text.
type AddSegmentRequest struct {
	DocumentID    string
	NodeID        string
	ParticipantID *string
	Start         int
	End           int
	Preview       string
}

func (r *AddSegmentRequest) normalize() {
	r.DocumentID = strings.TrimSpace(r.DocumentID)
	r.NodeID = strings.TrimSpace(r.NodeID)
	r.ParticipantID = normalizeOptionalID(r.ParticipantID)
}

// Validate checks the identifiers; the range is checked separately so it can
// surface as ErrInvalidRange.
func (r AddSegmentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentID, identifierRules...),
		validation.Field(&r.NodeID, identifierRules...),
	)
}

func (r AddSegmentRequest) validateRange() error {
	if r.Start < 0 || r.End < 0 {
		return fmt.Errorf("%w: negative bound [%d,%d)", ErrInvalidRange, r.Start, r.End)
	}
	if r.Start >= r.End {
		return fmt.Errorf("%w: start %d not before end %d", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

func validateName(value string) error {
	if err := validation.Validate(value, nameRules...); err != nil {
		return invalid("name", err)
	}
	return nil
}

func validateColor(value string) error {
	if err := validation.Validate(value, append([]validation.Rule{validation.Required}, colorRules...)...); err != nil {
		return invalid("color", err)
	}
	return nil
}

func validateIdentifier(field, value string) error {
	if err := validation.Validate(value, identifierRules...); err != nil {
		return invalid(field, err)
	}
	return nil
}

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func normalizeOptionalID(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return stringPointer(trimmed)
}
