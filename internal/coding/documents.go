package coding

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const documentSummarySelect = `SELECT d.id, d.project_id, d.participant_id, d.title, d.content, p.name AS participant_name
FROM documents d
LEFT JOIN participants p ON d.participant_id = p.id
WHERE d.project_id = ?
ORDER BY d.title, d.id`

type documentSummaryRow struct {
	Document
	ParticipantName *string `db:"participant_name"`
}

// CreateDocument stores a document, optionally attributed to a participant of the same project.
func (s *Service) CreateDocument(ctx context.Context, req CreateDocumentRequest) (Document, error) {
	if err := s.ready(opCreateDocument); err != nil {
		return Document{}, err
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		return Document{}, finish(opCreateDocument, s.fail(opCreateDocument, reasonInvalidInput, invalidRequest(err)))
	}
	documentID, err := s.newID(opCreateDocument)
	if err != nil {
		return Document{}, finish(opCreateDocument, err)
	}

	document := Document{
		ID:            documentID,
		ProjectID:     req.ProjectID,
		ParticipantID: req.ParticipantID,
		Title:         req.Title,
		Content:       req.Content,
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadProject(tx, opCreateDocument, req.ProjectID); err != nil {
			return err
		}
		if req.ParticipantID != nil {
			if _, err := s.loadParticipant(tx, opCreateDocument, *req.ParticipantID, req.ProjectID); err != nil {
				return err
			}
		}
		if err := tx.Create(&document).Error; err != nil {
			return s.fail(opCreateDocument, reasonInsertFailed, storeFailure(err), zap.String(fieldProjectID, req.ProjectID))
		}
		return nil
	})
	if txErr != nil {
		return Document{}, finish(opCreateDocument, txErr)
	}
	s.committed(opCreateDocument, document.ProjectID, ChangeKindDocument, document.ID)
	return document, nil
}

// GetDocument returns a document including its content.
func (s *Service) GetDocument(ctx context.Context, documentID string) (Document, error) {
	if err := s.ready(opGetDocument); err != nil {
		return Document{}, err
	}
	return s.loadDocument(s.db.WithContext(ctx), opGetDocument, documentID)
}

// ListDocuments returns the documents of a project with participant names and word counts.
func (s *Service) ListDocuments(ctx context.Context, projectID string) ([]DocumentSummary, error) {
	if err := s.ready(opListDocuments); err != nil {
		return nil, err
	}
	if _, err := s.loadProject(s.db.WithContext(ctx), opListDocuments, projectID); err != nil {
		return nil, err
	}
	var rows []documentSummaryRow
	if err := s.reader.SelectContext(ctx, &rows, documentSummarySelect, projectID); err != nil {
		return nil, s.fail(opListDocuments, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	summaries := make([]DocumentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, DocumentSummary{
			ID:              row.ID,
			ProjectID:       row.ProjectID,
			ParticipantID:   row.ParticipantID,
			ParticipantName: row.ParticipantName,
			Title:           row.Title,
			WordCount:       row.WordCount(),
		})
	}
	return summaries, nil
}

// UpdateDocumentContent replaces the content. Existing segments keep their offsets and previews.
func (s *Service) UpdateDocumentContent(ctx context.Context, documentID, content string) (Document, error) {
	return s.updateDocument(ctx, opUpdateDocumentContent, documentID, func(document *Document) (map[string]any, error) {
		document.Content = content
		return map[string]any{"content": content}, nil
	})
}

// RenameDocument changes the document title.
func (s *Service) RenameDocument(ctx context.Context, documentID, title string) (Document, error) {
	title = strings.TrimSpace(title)
	return s.updateDocument(ctx, opRenameDocument, documentID, func(document *Document) (map[string]any, error) {
		if err := validateName(title); err != nil {
			return nil, err
		}
		document.Title = title
		return map[string]any{"title": title}, nil
	})
}

// AssignDocumentParticipant attributes the document to a participant, or clears the attribution when nil.
func (s *Service) AssignDocumentParticipant(ctx context.Context, documentID string, participantID *string) (Document, error) {
	participantID = normalizeOptionalID(participantID)
	var checkParticipant func(tx *gorm.DB, projectID string) error
	if participantID != nil {
		checkParticipant = func(tx *gorm.DB, projectID string) error {
			_, err := s.loadParticipant(tx, opAssignDocumentParticipant, *participantID, projectID)
			return err
		}
	}
	return s.updateDocumentChecked(ctx, opAssignDocumentParticipant, documentID, checkParticipant, func(document *Document) (map[string]any, error) {
		document.ParticipantID = participantID
		if participantID == nil {
			return map[string]any{"participant_id": gorm.Expr("NULL")}, nil
		}
		return map[string]any{"participant_id": *participantID}, nil
	})
}

// DeleteDocument removes a document and every segment tagged in it.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.ready(opDeleteDocument); err != nil {
		return err
	}
	var projectID string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := s.loadDocument(tx, opDeleteDocument, documentID)
		if err != nil {
			return err
		}
		projectID = document.ProjectID
		if err := tx.Where("document_id = ?", documentID).Delete(&CodedSegment{}).Error; err != nil {
			return s.fail(opDeleteDocument, reasonDeleteFailed, storeFailure(err), zap.String(fieldDocumentID, documentID))
		}
		if err := tx.Where(queryID, documentID).Delete(&Document{}).Error; err != nil {
			return s.fail(opDeleteDocument, reasonDeleteFailed, storeFailure(err), zap.String(fieldDocumentID, documentID))
		}
		return nil
	})
	if txErr != nil {
		return finish(opDeleteDocument, txErr)
	}
	s.committed(opDeleteDocument, projectID, ChangeKindDocument, documentID)
	return nil
}

type documentMutation func(document *Document) (map[string]any, error)

func (s *Service) updateDocument(ctx context.Context, operation, documentID string, mutate documentMutation) (Document, error) {
	return s.updateDocumentChecked(ctx, operation, documentID, nil, mutate)
}

func (s *Service) updateDocumentChecked(ctx context.Context, operation, documentID string, check func(tx *gorm.DB, projectID string) error, mutate documentMutation) (Document, error) {
	if err := s.ready(operation); err != nil {
		return Document{}, err
	}
	var document Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadDocument(tx, operation, documentID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(tx, loaded.ProjectID); err != nil {
				return err
			}
		}
		updates, err := mutate(&loaded)
		if err != nil {
			return s.fail(operation, reasonInvalidInput, err)
		}
		if err := tx.Model(&Document{}).Where(queryID, documentID).Updates(updates).Error; err != nil {
			return s.fail(operation, reasonUpdateFailed, storeFailure(err), zap.String(fieldDocumentID, documentID))
		}
		document = loaded
		return nil
	})
	if txErr != nil {
		return Document{}, finish(operation, txErr)
	}
	s.committed(operation, document.ProjectID, ChangeKindDocument, document.ID)
	return document, nil
}

func (s *Service) loadDocument(tx *gorm.DB, operation, documentID string) (Document, error) {
	if err := validateIdentifier(fieldDocumentID, documentID); err != nil {
		return Document{}, s.fail(operation, reasonInvalidInput, err)
	}
	var document Document
	err := tx.Where(queryID, documentID).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, s.fail(operation, reasonDocumentNotFound, notFound("document", documentID))
	}
	if err != nil {
		return Document{}, s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(fieldDocumentID, documentID))
	}
	return document, nil
}
