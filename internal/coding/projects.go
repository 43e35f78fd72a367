package coding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	queryID        = "id = ?"
	queryProjectID = "project_id = ?"
	queryIDProject = "id = ? AND project_id = ?"
	queryIDsIn     = "id IN ?"
)

// CreateProject stores a project with a unique name.
func (s *Service) CreateProject(ctx context.Context, name, description string) (Project, error) {
	if err := s.ready(opCreateProject); err != nil {
		return Project{}, err
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Project{}, finish(opCreateProject, s.fail(opCreateProject, reasonInvalidInput, err))
	}
	projectID, err := s.newID(opCreateProject)
	if err != nil {
		return Project{}, finish(opCreateProject, err)
	}

	project := Project{
		ID:               projectID,
		Name:             name,
		Description:      strings.TrimSpace(description),
		CreatedAtSeconds: s.now(),
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureProjectNameFree(tx, opCreateProject, name, ""); err != nil {
			return err
		}
		if err := tx.Create(&project).Error; err != nil {
			if isUniqueViolation(err) {
				return s.fail(opCreateProject, reasonDuplicateName, duplicateName(name))
			}
			return s.fail(opCreateProject, reasonInsertFailed, storeFailure(err), zap.String("name", name))
		}
		return nil
	})
	if txErr != nil {
		return Project{}, finish(opCreateProject, txErr)
	}
	s.committed(opCreateProject, project.ID, ChangeKindProject, project.ID)
	return project, nil
}

// RenameProject changes the name of a project, keeping names unique.
func (s *Service) RenameProject(ctx context.Context, projectID, newName string) (Project, error) {
	if err := s.ready(opRenameProject); err != nil {
		return Project{}, err
	}
	newName = strings.TrimSpace(newName)
	if err := validateName(newName); err != nil {
		return Project{}, finish(opRenameProject, s.fail(opRenameProject, reasonInvalidInput, err))
	}

	var project Project
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadProject(tx, opRenameProject, projectID)
		if err != nil {
			return err
		}
		if err := s.ensureProjectNameFree(tx, opRenameProject, newName, projectID); err != nil {
			return err
		}
		if err := tx.Model(&Project{}).Where(queryID, projectID).Update("name", newName).Error; err != nil {
			if isUniqueViolation(err) {
				return s.fail(opRenameProject, reasonDuplicateName, duplicateName(newName))
			}
			return s.fail(opRenameProject, reasonUpdateFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
		}
		loaded.Name = newName
		project = loaded
		return nil
	})
	if txErr != nil {
		return Project{}, finish(opRenameProject, txErr)
	}
	s.committed(opRenameProject, projectID, ChangeKindProject, projectID)
	return project, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, projectID string) (Project, error) {
	if err := s.ready(opGetProject); err != nil {
		return Project{}, err
	}
	return s.loadProject(s.db.WithContext(ctx), opGetProject, projectID)
}

// ListProjects returns all projects ordered by name.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	if err := s.ready(opListProjects); err != nil {
		return nil, err
	}
	var projects []Project
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&projects).Error; err != nil {
		return nil, s.fail(opListProjects, reasonQueryFailed, storeFailure(err))
	}
	return projects, nil
}

// DeleteProject removes a project with all of its nodes, documents, participants and segments.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.ready(opDeleteProject); err != nil {
		return err
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadProject(tx, opDeleteProject, projectID); err != nil {
			return err
		}
		projectDocuments := tx.Model(&Document{}).Select("id").Where(queryProjectID, projectID)
		steps := []struct {
			query *gorm.DB
			model any
		}{
			{query: tx.Where("document_id IN (?)", projectDocuments), model: &CodedSegment{}},
			{query: tx.Where(queryProjectID, projectID), model: &Document{}},
			{query: tx.Where(queryProjectID, projectID), model: &Node{}},
			{query: tx.Where(queryProjectID, projectID), model: &Participant{}},
			{query: tx.Where(queryID, projectID), model: &Project{}},
		}
		for _, step := range steps {
			if err := step.query.Delete(step.model).Error; err != nil {
				return s.fail(opDeleteProject, reasonDeleteFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
			}
		}
		return nil
	})
	if txErr != nil {
		return finish(opDeleteProject, txErr)
	}
	s.committed(opDeleteProject, projectID, ChangeKindProject, projectID)
	return nil
}

func (s *Service) loadProject(tx *gorm.DB, operation, projectID string) (Project, error) {
	if err := validateIdentifier(fieldProjectID, projectID); err != nil {
		return Project{}, s.fail(operation, reasonInvalidInput, err)
	}
	var project Project
	err := tx.Where(queryID, projectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Project{}, s.fail(operation, reasonProjectNotFound, notFound("project", projectID))
	}
	if err != nil {
		return Project{}, s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	return project, nil
}

func (s *Service) ensureProjectNameFree(tx *gorm.DB, operation, name, exceptProjectID string) error {
	query := tx.Model(&Project{}).Where("name = ?", name)
	if exceptProjectID != "" {
		query = query.Where("id <> ?", exceptProjectID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return s.fail(operation, reasonQueryFailed, storeFailure(err))
	}
	if count > 0 {
		return s.fail(operation, reasonDuplicateName, duplicateName(name))
	}
	return nil
}

func duplicateName(name string) error {
	return fmt.Errorf("%w: project name %q already exists", ErrDuplicateName, name)
}
