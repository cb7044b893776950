package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/data/repos/story"
	"github.com/yungbote/insightflow-backend/internal/pkg/ctxutil"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type ProjectRepo = story.ProjectRepo
type StoryBlockRepo = story.StoryBlockRepo

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return story.NewProjectRepo(db, baseLog)
}

func NewStoryBlockRepo(db *gorm.DB, baseLog *logger.Logger) StoryBlockRepo {
	return story.NewStoryBlockRepo(db, baseLog)
}

// TxRunner runs fn inside a transaction. When dbc already carries one, fn runs in
// a savepoint nested within it.
type TxRunner interface {
	InTx(dbc dbctx.Context, fn func(dbc dbctx.Context) error) error
}

type txRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &txRunner{db: db}
}

func (r *txRunner) InTx(dbc dbctx.Context, fn func(dbc dbctx.Context) error) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	ctx := ctxutil.Default(dbc.Ctx)
	return t.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: txx})
	})
}
