package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/data/repos"
	"github.com/yungbote/insightflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/ctxutil"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
)

type fixture struct {
	ctx      context.Context
	tx       *gorm.DB
	projRepo repos.ProjectRepo
	projects ProjectService
	blocks   StoryBlockService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	pr := repos.NewProjectRepo(db, log)
	br := repos.NewStoryBlockRepo(db, log)
	return &fixture{
		ctx:      context.Background(),
		tx:       tx,
		projRepo: pr,
		projects: NewProjectService(db, log, pr),
		blocks:   NewStoryBlockService(db, log, pr, br),
	}
}

func newUserID() string { return "user_" + uuid.NewString() }

func asUser(uid string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: uid})
}

func (f *fixture) as(uid string) dbctx.Context {
	return dbctx.Context{Ctx: asUser(uid), Tx: f.tx}
}

func (f *fixture) anon() dbctx.Context {
	return dbctx.Context{Ctx: context.Background(), Tx: f.tx}
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("want api error %d, got %v", status, err)
	}
	if ae.Status != status {
		t.Fatalf("want status %d got %d (%v)", status, ae.Status, err)
	}
}
