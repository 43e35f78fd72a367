package coding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddSegment tags the rune range [Start, End) of a document with a node. The node and the
// optional participant must belong to the project of the document.
func (s *Service) AddSegment(ctx context.Context, req AddSegmentRequest) (CodedSegment, error) {
	if err := s.ready(opAddSegment); err != nil {
		return CodedSegment{}, err
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		return CodedSegment{}, finish(opAddSegment, s.fail(opAddSegment, reasonInvalidInput, invalidRequest(err)))
	}
	if err := req.validateRange(); err != nil {
		return CodedSegment{}, finish(opAddSegment, s.fail(opAddSegment, reasonInvalidRange, err))
	}
	segmentID, err := s.newID(opAddSegment)
	if err != nil {
		return CodedSegment{}, finish(opAddSegment, err)
	}

	var (
		segment   CodedSegment
		projectID string
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := s.loadDocument(tx, opAddSegment, req.DocumentID)
		if err != nil {
			return err
		}
		projectID = document.ProjectID
		if _, err := s.loadNode(tx, opAddSegment, reasonNodeNotFound, req.NodeID, document.ProjectID); err != nil {
			return err
		}
		if req.ParticipantID != nil {
			if _, err := s.loadParticipant(tx, opAddSegment, *req.ParticipantID, document.ProjectID); err != nil {
				return err
			}
		}
		if length := runeLength(document.Content); req.End > length {
			return s.fail(opAddSegment, reasonInvalidRange,
				fmt.Errorf("%w: end %d past content length %d", ErrInvalidRange, req.End, length))
		}
		preview := req.Preview
		if preview == "" {
			preview = runeSlice(document.Content, req.Start, req.End)
		}
		segment = CodedSegment{
			ID:               segmentID,
			DocumentID:       document.ID,
			NodeID:           req.NodeID,
			ParticipantID:    req.ParticipantID,
			SegmentStart:     req.Start,
			SegmentEnd:       req.End,
			ContentPreview:   preview,
			CreatedAtSeconds: s.now(),
		}
		if err := tx.Create(&segment).Error; err != nil {
			return s.fail(opAddSegment, reasonInsertFailed, storeFailure(err), zap.String(fieldDocumentID, document.ID))
		}
		return nil
	})
	if txErr != nil {
		return CodedSegment{}, finish(opAddSegment, txErr)
	}
	s.committed(opAddSegment, projectID, ChangeKindSegments, segment.ID)
	return segment, nil
}

// DeleteSegment removes one coded segment.
func (s *Service) DeleteSegment(ctx context.Context, segmentID string) error {
	if err := s.ready(opDeleteSegment); err != nil {
		return err
	}
	if err := validateIdentifier(fieldSegmentID, segmentID); err != nil {
		return finish(opDeleteSegment, s.fail(opDeleteSegment, reasonInvalidInput, err))
	}

	var projectID string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var segment CodedSegment
		err := tx.Where(queryID, segmentID).Take(&segment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail(opDeleteSegment, reasonSegmentNotFound, notFound("segment", segmentID))
		}
		if err != nil {
			return s.fail(opDeleteSegment, reasonQueryFailed, storeFailure(err), zap.String(fieldSegmentID, segmentID))
		}
		if err := tx.Model(&Document{}).Select("project_id").Where(queryID, segment.DocumentID).
			Scan(&projectID).Error; err != nil {
			return s.fail(opDeleteSegment, reasonQueryFailed, storeFailure(err), zap.String(fieldSegmentID, segmentID))
		}
		if err := tx.Where(queryID, segmentID).Delete(&CodedSegment{}).Error; err != nil {
			return s.fail(opDeleteSegment, reasonDeleteFailed, storeFailure(err), zap.String(fieldSegmentID, segmentID))
		}
		return nil
	})
	if txErr != nil {
		return finish(opDeleteSegment, txErr)
	}
	s.committed(opDeleteSegment, projectID, ChangeKindSegments, segmentID)
	return nil
}
