package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/data/repos"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/domain/story"
	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type AddBlockInput struct {
	ProjectID uuid.UUID
	Type      string
	Content   json.RawMessage
}

type StoryBlockService interface {
	Add(dbc dbctx.Context, in AddBlockInput) (*types.StoryBlock, error)
	UpdateOrder(dbc dbctx.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error
	UpdateContent(dbc dbctx.Context, blockID uuid.UUID, content json.RawMessage) (*types.StoryBlock, error)
	Delete(dbc dbctx.Context, blockID uuid.UUID) error
}

type storyBlockService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	blockRepo   repos.StoryBlockRepo
}

func NewStoryBlockService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo, blockRepo repos.StoryBlockRepo) StoryBlockService {
	return &storyBlockService{
		db:          db,
		log:         baseLog.With("service", "StoryBlockService"),
		projectRepo: projectRepo,
		blockRepo:   blockRepo,
	}
}

func decodeBlockContent(t types.BlockType, raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) > 0 && !json.Valid(raw) {
		return nil, apierr.Validation("content is not valid JSON")
	}
	c, err := story.DecodeContent(t, raw)
	if err != nil {
		return nil, apierr.InvalidInput(err)
	}
	return story.EncodeContent(c)
}

// Add appends a block after the project's current last block. The project row
// is locked so concurrent appends take distinct orders.
func (s *storyBlockService) Add(dbc dbctx.Context, in AddBlockInput) (*types.StoryBlock, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	blockType, err := story.ParseBlockType(in.Type)
	if err != nil {
		return nil, apierr.InvalidInput(err)
	}
	content, err := decodeBlockContent(blockType, in.Content)
	if err != nil {
		return nil, err
	}

	var created *types.StoryBlock
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := lockOwnedProject(inner, s.projectRepo, in.ProjectID, uid); err != nil {
			return err
		}
		orders, err := s.blockRepo.ListOrdersByProject(inner, in.ProjectID)
		if err != nil {
			return err
		}
		b := &types.StoryBlock{
			ID:        uuid.New(),
			ProjectID: in.ProjectID,
			Type:      blockType,
			Content:   content,
			Order:     story.NextBlockOrder(orders),
		}
		if err := s.blockRepo.Create(inner, b); err != nil {
			return err
		}
		created = b
		return s.projectRepo.Touch(inner, in.ProjectID, nowUTC())
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return created, nil
}

// UpdateOrder rewrites every block's order to its index in orderedIDs. The ids
// must be exactly the project's blocks. Nothing is written unless the whole
// renumbering succeeds.
func (s *storyBlockService) UpdateOrder(dbc dbctx.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(dbc.Ctx, "story.reorder",
		attribute.String("project_id", projectID.String()),
		attribute.Int("blocks", len(orderedIDs)),
	)
	start := time.Now()
	defer func() {
		observability.Current().ObserveReorder(reorderResult(err), len(orderedIDs))
		observability.EndSpan(span, err)
	}()
	dbc.Ctx = ctx

	uid, err := requireUser(ctx)
	if err != nil {
		return err
	}

	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := lockOwnedProject(inner, s.projectRepo, projectID, uid); err != nil {
			return err
		}
		existing, err := s.blockRepo.ListIDsByProject(inner, projectID)
		if err != nil {
			return err
		}
		if err := story.ValidateReorder(existing, orderedIDs); err != nil {
			return apierr.InvalidInput(err)
		}
		if len(orderedIDs) == 0 {
			return nil
		}
		if err := s.blockRepo.Renumber(inner, projectID, orderedIDs); err != nil {
			return err
		}
		return s.projectRepo.Touch(inner, projectID, nowUTC())
	})
	if err != nil {
		err = storeErr(err)
		s.log.Warn("Block reorder rejected", "project_id", projectID, "error", err)
		return err
	}
	s.log.Debug("Blocks reordered", "project_id", projectID, "blocks", len(orderedIDs), "took", time.Since(start))
	return nil
}

func reorderResult(err error) string {
	if err == nil {
		return "ok"
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		switch ae.Status {
		case http.StatusBadRequest:
			return "invalid"
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusConflict:
			return "conflict"
		}
	}
	return "error"
}

// loadOwnedBlock finds the block and locks its project, checking ownership.
func (s *storyBlockService) loadOwnedBlock(dbc dbctx.Context, blockID uuid.UUID, uid string) (*types.StoryBlock, error) {
	b, err := s.blockRepo.GetByID(dbc, blockID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apierr.NotFound(codeBlockNotFound, "story block not found")
	}
	if _, err := lockOwnedProject(dbc, s.projectRepo, b.ProjectID, uid); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *storyBlockService) UpdateContent(dbc dbctx.Context, blockID uuid.UUID, content json.RawMessage) (*types.StoryBlock, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if len(content) > 0 && !json.Valid(content) {
		return nil, apierr.Validation("content is not valid JSON")
	}

	var updated *types.StoryBlock
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		b, err := s.loadOwnedBlock(inner, blockID, uid)
		if err != nil {
			return err
		}
		enc, err := decodeBlockContent(b.Type, content)
		if err != nil {
			return err
		}
		if err := s.blockRepo.UpdateContent(inner, blockID, enc); err != nil {
			return err
		}
		if err := s.projectRepo.Touch(inner, b.ProjectID, nowUTC()); err != nil {
			return err
		}
		updated, err = s.blockRepo.GetByID(inner, blockID)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// Delete removes one block. The remaining orders keep their gaps.
func (s *storyBlockService) Delete(dbc dbctx.Context, blockID uuid.UUID) error {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return err
	}
	return storeErr(inTx(s.db, dbc, func(inner dbctx.Context) error {
		b, err := s.loadOwnedBlock(inner, blockID, uid)
		if err != nil {
			return err
		}
		if _, err := s.blockRepo.Delete(inner, blockID); err != nil {
			return err
		}
		return s.projectRepo.Touch(inner, b.ProjectID, nowUTC())
	}))
}
