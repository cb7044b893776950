package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, p *types.Project) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	GetWithBlocks(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.Project, error)
	UpdateTitle(dbc dbctx.Context, id uuid.UUID, title string) error
	UpdateDatasetURL(dbc dbctx.Context, id uuid.UUID, datasetURL *string) error
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, p *types.Project) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if p == nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(p).Error
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	return r.get(dbc, id, false)
}

// GetByIDForUpdate locks the row until the surrounding transaction ends. sqlite
// ignores the locking clause.
func (r *projectRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	return r.get(dbc, id, true)
}

func (r *projectRepo) get(dbc dbctx.Context, id uuid.UUID, forUpdate bool) (*types.Project, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	q := t.WithContext(dbc.Ctx).Where("id = ?", id)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row types.Project
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *projectRepo) GetWithBlocks(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Project
	err := t.WithContext(dbc.Ctx).
		Preload("StoryBlocks", func(db *gorm.DB) *gorm.DB {
			return db.Order("block_order ASC").Order("created_at ASC")
		}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	if row.StoryBlocks == nil {
		row.StoryBlocks = []types.StoryBlock{}
	}
	return &row, nil
}

func (r *projectRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.Project, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.Project{}
	if userID == "" {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *projectRepo) UpdateTitle(dbc dbctx.Context, id uuid.UUID, title string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *projectRepo) UpdateDatasetURL(dbc dbctx.Context, id uuid.UUID, datasetURL *string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dataset_url": datasetURL,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *projectRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

// Delete removes the project and its blocks. Blocks are deleted explicitly so
// the cascade holds even where foreign keys are not enforced.
func (r *projectRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var deleted int64
	err := t.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("project_id = ?", id).Delete(&types.StoryBlock{}).Error; err != nil {
			return err
		}
		res := txx.Where("id = ?", id).Delete(&types.Project{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
