package coding

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateParticipant adds a participant to a project.
func (s *Service) CreateParticipant(ctx context.Context, projectID, name, details string) (Participant, error) {
	if err := s.ready(opCreateParticipant); err != nil {
		return Participant{}, err
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Participant{}, finish(opCreateParticipant, s.fail(opCreateParticipant, reasonInvalidInput, err))
	}
	participantID, err := s.newID(opCreateParticipant)
	if err != nil {
		return Participant{}, finish(opCreateParticipant, err)
	}

	participant := Participant{
		ID:        participantID,
		ProjectID: projectID,
		Name:      name,
		Details:   strings.TrimSpace(details),
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadProject(tx, opCreateParticipant, projectID); err != nil {
			return err
		}
		if err := tx.Create(&participant).Error; err != nil {
			return s.fail(opCreateParticipant, reasonInsertFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
		}
		return nil
	})
	if txErr != nil {
		return Participant{}, finish(opCreateParticipant, txErr)
	}
	s.committed(opCreateParticipant, projectID, ChangeKindParticipant, participant.ID)
	return participant, nil
}

// UpdateParticipant replaces the name and details of a participant.
func (s *Service) UpdateParticipant(ctx context.Context, participantID, name, details string) (Participant, error) {
	if err := s.ready(opUpdateParticipant); err != nil {
		return Participant{}, err
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Participant{}, finish(opUpdateParticipant, s.fail(opUpdateParticipant, reasonInvalidInput, err))
	}

	var participant Participant
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadParticipant(tx, opUpdateParticipant, participantID, "")
		if err != nil {
			return err
		}
		loaded.Name = name
		loaded.Details = strings.TrimSpace(details)
		if err := tx.Model(&Participant{}).Where(queryID, participantID).
			Updates(map[string]any{"name": loaded.Name, "details": loaded.Details}).Error; err != nil {
			return s.fail(opUpdateParticipant, reasonUpdateFailed, storeFailure(err), zap.String(fieldParticipantID, participantID))
		}
		participant = loaded
		return nil
	})
	if txErr != nil {
		return Participant{}, finish(opUpdateParticipant, txErr)
	}
	s.committed(opUpdateParticipant, participant.ProjectID, ChangeKindParticipant, participant.ID)
	return participant, nil
}

// ListParticipants returns the participants of a project ordered by name.
func (s *Service) ListParticipants(ctx context.Context, projectID string) ([]Participant, error) {
	if err := s.ready(opListParticipants); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := s.loadProject(db, opListParticipants, projectID); err != nil {
		return nil, err
	}
	var participants []Participant
	if err := db.Where(queryProjectID, projectID).Order("name ASC").Order("id ASC").Find(&participants).Error; err != nil {
		return nil, s.fail(opListParticipants, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	return participants, nil
}

// DeleteParticipant removes a participant and clears it from documents and segments
// without deleting them.
func (s *Service) DeleteParticipant(ctx context.Context, participantID string) error {
	if err := s.ready(opDeleteParticipant); err != nil {
		return err
	}
	var projectID string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant, err := s.loadParticipant(tx, opDeleteParticipant, participantID, "")
		if err != nil {
			return err
		}
		projectID = participant.ProjectID
		for _, model := range []any{&Document{}, &CodedSegment{}} {
			if err := tx.Model(model).Where("participant_id = ?", participantID).
				Update("participant_id", gorm.Expr("NULL")).Error; err != nil {
				return s.fail(opDeleteParticipant, reasonUpdateFailed, storeFailure(err), zap.String(fieldParticipantID, participantID))
			}
		}
		if err := tx.Where(queryID, participantID).Delete(&Participant{}).Error; err != nil {
			return s.fail(opDeleteParticipant, reasonDeleteFailed, storeFailure(err), zap.String(fieldParticipantID, participantID))
		}
		return nil
	})
	if txErr != nil {
		return finish(opDeleteParticipant, txErr)
	}
	s.committed(opDeleteParticipant, projectID, ChangeKindParticipant, participantID)
	return nil
}

// loadParticipant fetches a participant, scoped to projectID when it is non-empty.
func (s *Service) loadParticipant(tx *gorm.DB, operation, participantID, projectID string) (Participant, error) {
	if err := validateIdentifier(fieldParticipantID, participantID); err != nil {
		return Participant{}, s.fail(operation, reasonInvalidInput, err)
	}
	query := tx.Where(queryID, participantID)
	if projectID != "" {
		query = tx.Where(queryIDProject, participantID, projectID)
	}
	var participant Participant
	err := query.Take(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Participant{}, s.fail(operation, reasonParticipantNotFound, notFound("participant", participantID))
	}
	if err != nil {
		return Participant{}, s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(fieldParticipantID, participantID))
	}
	return participant, nil
}
