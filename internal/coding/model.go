package coding

import (
	"strings"
	"unicode/utf8"
)

const (
	maxIdentifierLength = 190
	maxNameLength       = 190
	// DefaultNodeColor is applied when a node is created without a color.
	DefaultNodeColor = "#FFFF00"
)

// Project groups a taxonomy, its documents and participants.
type Project struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" db:"id"`
	Name             string `gorm:"column:name;size:190;not null;uniqueIndex:idx_projects_name" db:"name"`
	Description      string `gorm:"column:description;type:text;not null;default:''" db:"description"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" db:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// Participant is a research participant documents and segments can be attributed to.
type Participant struct {
	ID        string `gorm:"column:id;primaryKey;size:190;not null" db:"id"`
	ProjectID string `gorm:"column:project_id;size:190;not null;index:idx_participants_project" db:"project_id"`
	Name      string `gorm:"column:name;size:190;not null" db:"name"`
	Details   string `gorm:"column:details;type:text;not null;default:''" db:"details"`
}

// TableName provides the explicit table binding for GORM.
func (Participant) TableName() string {
	return "participants"
}

// Document holds the plain text that segments are tagged against.
type Document struct {
	ID            string  `gorm:"column:id;primaryKey;size:190;not null" db:"id"`
	ProjectID     string  `gorm:"column:project_id;size:190;not null;index:idx_documents_project" db:"project_id"`
	ParticipantID *string `gorm:"column:participant_id;size:190;index:idx_documents_participant" db:"participant_id"`
	Title         string  `gorm:"column:title;size:190;not null" db:"title"`
	Content       string  `gorm:"column:content;type:text;not null" db:"content"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// WordCount returns the number of whitespace separated words in the content.
func (d Document) WordCount() int {
	return CountWords(d.Content)
}

// Node is one code of a project taxonomy. A nil ParentID marks a root.
type Node struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null" db:"id"`
	ProjectID        string  `gorm:"column:project_id;size:190;not null;index:idx_nodes_group,priority:1" db:"project_id"`
	ParentID         *string `gorm:"column:parent_id;size:190;index:idx_nodes_group,priority:2" db:"parent_id"`
	Name             string  `gorm:"column:name;size:190;not null" db:"name"`
	Color            string  `gorm:"column:color;size:16;not null;default:'#FFFF00'" db:"color"`
	Position         int     `gorm:"column:position;not null;default:0" db:"position"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null" db:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Node) TableName() string {
	return "nodes"
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

// ParentKey returns the parent identifier or an empty string for roots.
func (n Node) ParentKey() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// CodedSegment applies a node to the half-open rune range [SegmentStart, SegmentEnd) of a document.
type CodedSegment struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null" db:"id"`
	DocumentID       string  `gorm:"column:document_id;size:190;not null;index:idx_segments_document" db:"document_id"`
	NodeID           string  `gorm:"column:node_id;size:190;not null;index:idx_segments_node" db:"node_id"`
	ParticipantID    *string `gorm:"column:participant_id;size:190;index:idx_segments_participant" db:"participant_id"`
	SegmentStart     int     `gorm:"column:segment_start;not null" db:"segment_start"`
	SegmentEnd       int     `gorm:"column:segment_end;not null" db:"segment_end"`
	ContentPreview   string  `gorm:"column:content_preview;type:text;not null" db:"content_preview"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null" db:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (CodedSegment) TableName() string {
	return "coded_segments"
}

// SegmentRow is a coded segment joined with the display fields of its node,
// document and participant.
type SegmentRow struct {
	ID              string  `db:"id"`
	DocumentID      string  `db:"document_id"`
	NodeID          string  `db:"node_id"`
	ParticipantID   *string `db:"participant_id"`
	SegmentStart    int     `db:"segment_start"`
	SegmentEnd      int     `db:"segment_end"`
	ContentPreview  string  `db:"content_preview"`
	DocumentTitle   string  `db:"document_title"`
	NodeName        string  `db:"node_name"`
	NodeColor       string  `db:"node_color"`
	ParticipantName *string `db:"participant_name"`
}

// WordCount returns the number of words in the cached preview.
func (r SegmentRow) WordCount() int {
	return CountWords(r.ContentPreview)
}

// Overlaps reports whether the half-open intervals of both segments intersect.
func (r SegmentRow) Overlaps(other SegmentRow) bool {
	return r.SegmentStart < other.SegmentEnd && other.SegmentStart < r.SegmentEnd
}

// DocumentSummary is a document listing entry without its content.
type DocumentSummary struct {
	ID              string
	ProjectID       string
	ParticipantID   *string
	ParticipantName *string
	Title           string
	WordCount       int
}

// CountWords splits text on whitespace and counts the resulting words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func runeLength(text string) int {
	return utf8.RuneCountInString(text)
}

func runeSlice(text string, start, end int) string {
	runes := []rune(text)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

func stringPointer(value string) *string {
	v := value
	return &v
}

func sameParent(left, right *string) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return *left == *right
}
