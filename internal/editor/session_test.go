package editor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/insightflow-backend/internal/clientcache"
	"github.com/yungbote/insightflow-backend/internal/clients/httpfetch"
	"github.com/yungbote/insightflow-backend/internal/clients/unsplash"
	"github.com/yungbote/insightflow-backend/internal/data/repos"
	"github.com/yungbote/insightflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	apphttp "github.com/yungbote/insightflow-backend/internal/http"
	httpH "github.com/yungbote/insightflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/insightflow-backend/internal/http/middleware"
	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
	"github.com/yungbote/insightflow-backend/internal/rpcclient"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type notes struct {
	mu  sync.Mutex
	all []clientcache.Notification
}

func (n *notes) Notify(x clientcache.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, x)
}

func (n *notes) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.all))
	for _, x := range n.all {
		out = append(out, x.Message)
	}
	return out
}

type backend struct {
	url  string
	auth services.AuthService
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	projectRepo := repos.NewProjectRepo(db, log)
	blockRepo := repos.NewStoryBlockRepo(db, log)
	auth := services.NewAuthService(log, "editor-test-secret")

	engine := apphttp.NewRouter(apphttp.RouterConfig{
		Log:               log,
		Timeout:           httpMW.TimeoutConfig{Duration: 5 * time.Second},
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, auth),
		ProjectHandler:    httpH.NewProjectHandler(log, services.NewProjectService(db, log, projectRepo)),
		StoryBlockHandler: httpH.NewStoryBlockHandler(log, services.NewStoryBlockService(db, log, projectRepo, blockRepo)),
		DatasetHandler: httpH.NewDatasetHandler(log, services.NewDatasetService(db, log, projectRepo,
			services.DatasetSources{HTTP: httpfetch.New(log, httpfetch.Config{})}, tabular.Options{})),
		ImageHandler:  httpH.NewImageHandler(log, services.NewImageSearchService(log, unsplash.New(log, unsplash.Config{}))),
		HealthHandler: httpH.NewHealthHandler(db),
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &backend{url: srv.URL, auth: auth}
}

func (b *backend) client(t *testing.T, userID string) *rpcclient.Client {
	t.Helper()
	tok, err := b.auth.SignToken(userID, time.Hour)
	require.NoError(t, err)
	return rpcclient.New(b.url, rpcclient.WithToken(tok))
}

func newSession(t *testing.T, api API, projectID uuid.UUID) (*Session, *clientcache.Store[ProjectView], *notes) {
	t.Helper()
	n := &notes{}
	store := NewStore(testutil.Logger(t), api, n)
	t.Cleanup(store.Close)
	return NewSession(store, api, projectID), store, n
}

func blockIDs(v ProjectView) []string {
	out := make([]string, 0, len(v.Blocks))
	for _, b := range v.Blocks {
		out = append(out, b.ID)
	}
	return out
}

func TestSessionEditsReachServer(t *testing.T) {
	ctx := context.Background()
	be := newBackend(t)
	owner := be.client(t, "user-owner")

	p, err := owner.CreateProject(ctx, "Draft", nil)
	require.NoError(t, err)

	s, store, n := newSession(t, owner, p.ID)
	v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Draft", v.Title)
	assert.Empty(t, v.Blocks)

	require.NoError(t, s.AddBlock(ctx, types.BlockHeading, nil))
	require.NoError(t, s.AddBlock(ctx, types.BlockParagraph, nil))
	store.Wait()

	v, _ = s.View()
	require.Len(t, v.Blocks, 2)
	for i, b := range v.Blocks {
		assert.False(t, b.IsTemp(), "server ids replace temporary ones")
		assert.Equal(t, i, b.Order)
	}
	assert.JSONEq(t, `{"text":"New Heading"}`, string(v.Blocks[0].Content))
	heading, paragraph := v.Blocks[0].ID, v.Blocks[1].ID

	require.NoError(t, s.MoveBlock(ctx, paragraph, heading))
	v, _ = s.View()
	assert.Equal(t, []string{paragraph, heading}, blockIDs(v), "move is visible before the refetch")
	store.Wait()

	srvView, err := owner.GetProjectByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{paragraph, heading}, blockIDs(viewFromProject(srvView)))

	require.NoError(t, s.UpdateContent(ctx, heading, json.RawMessage(`{"text":"Revenue"}`)))
	require.NoError(t, s.RenameProject(ctx, "  Quarterly story "))
	require.NoError(t, s.LinkDataset(ctx, "https://data.example.com/q3.csv"))
	require.NoError(t, s.DeleteBlock(ctx, paragraph))
	store.Wait()

	v, _ = s.View()
	assert.Equal(t, "Quarterly story", v.Title)
	require.NotNil(t, v.DatasetURL)
	assert.Equal(t, "https://data.example.com/q3.csv", *v.DatasetURL)
	require.Len(t, v.Blocks, 1)
	assert.Equal(t, heading, v.Blocks[0].ID)
	assert.JSONEq(t, `{"text":"Revenue"}`, string(v.Blocks[0].Content))
	assert.Empty(t, n.messages())
}

func TestSessionRollsBackRejectedEdits(t *testing.T) {
	ctx := context.Background()
	be := newBackend(t)
	owner := be.client(t, "user-owner")
	intruder := be.client(t, "user-intruder")

	p, err := owner.CreateProject(ctx, "Mine", nil)
	require.NoError(t, err)
	_, err = owner.AddStoryBlock(ctx, p.ID, types.BlockHeading, nil)
	require.NoError(t, err)
	_, err = owner.AddStoryBlock(ctx, p.ID, types.BlockParagraph, nil)
	require.NoError(t, err)
	full, err := owner.GetProjectByID(ctx, p.ID)
	require.NoError(t, err)

	// The intruder's cache holds a copy it cannot write back.
	s, store, n := newSession(t, intruder, p.ID)
	store.Set(ProjectKey(p.ID), viewFromProject(full))
	before := store.Snapshot(ProjectKey(p.ID))

	err = s.RenameProject(ctx, "Stolen")
	var rpcErr *rpcclient.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, rpcErr.Status)

	ids := blockIDs(before.Value)
	err = s.MoveBlock(ctx, ids[1], ids[0])
	require.Error(t, err)
	store.Wait()

	after := store.Snapshot(ProjectKey(p.ID))
	assert.Equal(t, before.Value, after.Value)
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, []string{"Could not rename project", "Could not reorder blocks"}, n.messages())

	// An invalid title from the owner is rejected and rolled back too.
	ownerSess, ownerStore, ownerNotes := newSession(t, owner, p.ID)
	_, err = ownerSess.Load(ctx)
	require.NoError(t, err)
	require.Error(t, ownerSess.RenameProject(ctx, "   "))
	ownerStore.Wait()
	v, _ := ownerSess.View()
	assert.Equal(t, "Mine", v.Title)
	assert.Equal(t, []string{"Could not rename project"}, ownerNotes.messages())
}

func TestSessionGuards(t *testing.T) {
	ctx := context.Background()
	pid := uuid.New()
	s, store, _ := newSession(t, nil, pid)

	assert.ErrorIs(t, s.AddBlock(ctx, types.BlockHeading, nil), ErrNotLoaded)

	known := uuid.NewString()
	store.Set(ProjectKey(pid), ProjectView{ID: pid, Blocks: []BlockView{
		{ID: known, Type: types.BlockHeading, Order: 0},
		{ID: TempIDPrefix + "x", Type: types.BlockParagraph, Order: 1},
	}})

	assert.ErrorIs(t, s.MoveBlock(ctx, known, TempIDPrefix+"x"), ErrPendingBlock)
	assert.ErrorIs(t, s.DeleteBlock(ctx, TempIDPrefix+"x"), ErrPendingBlock)
	assert.ErrorIs(t, s.UpdateContent(ctx, uuid.NewString(), nil), ErrUnknownBlock)
	assert.NoError(t, s.MoveBlock(ctx, known, known))
	assert.Zero(t, store.Pending(ProjectKey(pid)))
}

func TestArrayMove(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ArrayMove(in, 2, 0))
	assert.Equal(t, []string{"b", "c", "a", "d"}, ArrayMove(in, 0, 2))
	assert.Equal(t, in, ArrayMove(in, 1, 9))
	assert.Equal(t, []string{"a", "b", "c", "d"}, in, "input is untouched")
}

func TestCloneDoesNotAlias(t *testing.T) {
	link := "https://x.example/d.csv"
	v := ProjectView{DatasetURL: &link, Blocks: []BlockView{{ID: "1", Content: json.RawMessage(`{"text":"a"}`)}}}
	c := v.Clone()
	c.Blocks[0].Content[9] = 'b'
	*c.DatasetURL = "changed"
	assert.Equal(t, `{"text":"a"}`, string(v.Blocks[0].Content))
	assert.Equal(t, "https://x.example/d.csv", *v.DatasetURL)
}
