package story

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type StoryBlockRepo interface {
	Create(dbc dbctx.Context, b *types.StoryBlock) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StoryBlock, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.StoryBlock, error)
	ListIDsByProject(dbc dbctx.Context, projectID uuid.UUID) ([]uuid.UUID, error)
	ListOrdersByProject(dbc dbctx.Context, projectID uuid.UUID) ([]int, error)
	UpdateContent(dbc dbctx.Context, id uuid.UUID, content datatypes.JSON) error
	Renumber(dbc dbctx.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type storyBlockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryBlockRepo(db *gorm.DB, baseLog *logger.Logger) StoryBlockRepo {
	return &storyBlockRepo{db: db, log: baseLog.With("repo", "StoryBlockRepo")}
}

func (r *storyBlockRepo) Create(dbc dbctx.Context, b *types.StoryBlock) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if b == nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(b).Error
}

func (r *storyBlockRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StoryBlock, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.StoryBlock
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *storyBlockRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.StoryBlock, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.StoryBlock{}
	err := t.WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("block_order ASC").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *storyBlockRepo) ListIDsByProject(dbc dbctx.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var ids []uuid.UUID
	err := t.WithContext(dbc.Ctx).
		Model(&types.StoryBlock{}).
		Where("project_id = ?", projectID).
		Order("block_order ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *storyBlockRepo) ListOrdersByProject(dbc dbctx.Context, projectID uuid.UUID) ([]int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var orders []int
	err := t.WithContext(dbc.Ctx).
		Model(&types.StoryBlock{}).
		Where("project_id = ?", projectID).
		Pluck("block_order", &orders).Error
	return orders, err
}

func (r *storyBlockRepo) UpdateContent(dbc dbctx.Context, id uuid.UUID, content datatypes.JSON) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.StoryBlock{}).
		Where("id = ?", id).
		Update("content", content).Error
}

// Renumber assigns order = index to every id. The first pass parks each block on
// a distinct negative order so the (project_id, block_order) unique index never
// sees two blocks on the same slot. Callers run it inside a transaction.
func (r *storyBlockRepo) Renumber(dbc dbctx.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	db := t.WithContext(dbc.Ctx)
	for pass, offset := range []func(i int) int{
		func(i int) int { return -(i + 1) },
		func(i int) int { return i },
	} {
		for i, id := range orderedIDs {
			res := db.Model(&types.StoryBlock{}).
				Where("id = ? AND project_id = ?", id, projectID).
				Update("block_order", offset(i))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("renumber pass %d: block %s not in project %s", pass, id, projectID)
			}
		}
	}
	return nil
}

func (r *storyBlockRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.StoryBlock{})
	return res.RowsAffected, res.Error
}
