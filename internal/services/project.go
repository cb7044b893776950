package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/data/repos"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type CreateProjectInput struct {
	Title       string
	Description *string
}

type ProjectService interface {
	List(dbc dbctx.Context) ([]*types.Project, error)
	Create(dbc dbctx.Context, in CreateProjectInput) (*types.Project, error)
	Get(dbc dbctx.Context, projectID uuid.UUID) (*types.Project, error)
	GetPublic(dbc dbctx.Context, projectID uuid.UUID) (*types.PublicProject, error)
	UpdateTitle(dbc dbctx.Context, projectID uuid.UUID, title string) (*types.Project, error)
	Delete(dbc dbctx.Context, projectID uuid.UUID) error
	LinkDataset(dbc dbctx.Context, projectID uuid.UUID, fileURL string) error
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo) ProjectService {
	return &projectService{
		db:          db,
		log:         baseLog.With("service", "ProjectService"),
		projectRepo: projectRepo,
	}
}

// List returns the caller's projects, most recently updated first.
func (s *projectService) List(dbc dbctx.Context) ([]*types.Project, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.projectRepo.ListByUser(dbc, uid)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.Project{}
	}
	return out, nil
}

func (s *projectService) Create(dbc dbctx.Context, in CreateProjectInput) (*types.Project, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	var desc *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			desc = &d
		}
	}

	p := &types.Project{
		ID:          uuid.New(),
		UserID:      uid,
		Title:       title,
		Description: desc,
	}
	if err := s.projectRepo.Create(dbc, p); err != nil {
		return nil, storeErr(err)
	}
	s.log.Info("Project created", "project_id", p.ID, "user_id", uid)
	return p, nil
}

// Get returns the project with its blocks in order. A project the caller does
// not own is reported as missing.
func (s *projectService) Get(dbc dbctx.Context, projectID uuid.UUID) (*types.Project, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.projectRepo.GetWithBlocks(dbc, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.OwnedBy(uid) {
		return nil, apierr.NotFound(codeProjectNotFound, "project not found")
	}
	return p, nil
}

// GetPublic needs no caller and returns (nil, nil) for an unknown id.
func (s *projectService) GetPublic(dbc dbctx.Context, projectID uuid.UUID) (*types.PublicProject, error) {
	p, err := s.projectRepo.GetWithBlocks(dbc, projectID)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Public(), nil
}

func (s *projectService) UpdateTitle(dbc dbctx.Context, projectID uuid.UUID, title string) (*types.Project, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	title, err = normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	var updated *types.Project
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := lockOwnedProject(inner, s.projectRepo, projectID, uid); err != nil {
			return err
		}
		if err := s.projectRepo.UpdateTitle(inner, projectID, title); err != nil {
			return err
		}
		p, err := s.projectRepo.GetByID(inner, projectID)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// Delete removes the project and every block in it.
func (s *projectService) Delete(dbc dbctx.Context, projectID uuid.UUID) error {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return err
	}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := lockOwnedProject(inner, s.projectRepo, projectID, uid); err != nil {
			return err
		}
		_, err := s.projectRepo.Delete(inner, projectID)
		return err
	})
	if err != nil {
		return storeErr(err)
	}
	s.log.Info("Project deleted", "project_id", projectID, "user_id", uid)
	return nil
}

func (s *projectService) LinkDataset(dbc dbctx.Context, projectID uuid.UUID, fileURL string) error {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return err
	}
	locator, err := normalizeDatasetLocator(fileURL)
	if err != nil {
		return err
	}
	return storeErr(inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := lockOwnedProject(inner, s.projectRepo, projectID, uid); err != nil {
			return err
		}
		return s.projectRepo.UpdateDatasetURL(inner, projectID, &locator)
	}))
}

func nowUTC() time.Time { return time.Now().UTC() }
