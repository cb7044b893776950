package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/insightflow-backend/internal/clients/httpfetch"
	"github.com/yungbote/insightflow-backend/internal/clients/unsplash"
	"github.com/yungbote/insightflow-backend/internal/data/repos"
	"github.com/yungbote/insightflow-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/insightflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/insightflow-backend/internal/http/middleware"
	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
	"github.com/yungbote/insightflow-backend/internal/pkg/httpx"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type stubImages struct {
	imgs []unsplash.Image
	err  error
}

func (s stubImages) Search(context.Context, string) ([]unsplash.Image, error) {
	return s.imgs, s.err
}

type harness struct {
	t      *testing.T
	engine *gin.Engine
	auth   services.AuthService
}

func newHarness(t *testing.T, images unsplash.Client) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	projectRepo := repos.NewProjectRepo(db, log)
	blockRepo := repos.NewStoryBlockRepo(db, log)
	auth := services.NewAuthService(log, "router-test-secret")

	engine := NewRouter(RouterConfig{
		Log:               log,
		Timeout:           httpMW.TimeoutConfig{Duration: 5 * time.Second},
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, auth),
		ProjectHandler:    httpH.NewProjectHandler(log, services.NewProjectService(db, log, projectRepo)),
		StoryBlockHandler: httpH.NewStoryBlockHandler(log, services.NewStoryBlockService(db, log, projectRepo, blockRepo)),
		DatasetHandler: httpH.NewDatasetHandler(log, services.NewDatasetService(db, log, projectRepo,
			services.DatasetSources{HTTP: httpfetch.New(log, httpfetch.Config{})}, tabular.Options{})),
		ImageHandler:  httpH.NewImageHandler(log, services.NewImageSearchService(log, images)),
		HealthHandler: httpH.NewHealthHandler(db),
	})
	return &harness{t: t, engine: engine, auth: auth}
}

func (h *harness) token(userID string) string {
	h.t.Helper()
	tok, err := h.auth.SignToken(userID, time.Hour)
	require.NoError(h.t, err)
	return tok
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (h *harness) call(method, procedure, token string, input any) (int, envelope) {
	h.t.Helper()
	target := httpH.RPCPrefix + procedure
	var body *bytes.Reader
	if input != nil {
		raw, err := json.Marshal(input)
		require.NoError(h.t, err)
		if method == nethttp.MethodGet {
			target += "?input=" + url.QueryEscape(string(raw))
			body = bytes.NewReader(nil)
		} else {
			body = bytes.NewReader(raw)
		}
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec.Code, env
}

func (h *harness) query(procedure, token string, input any) (int, envelope) {
	return h.call(nethttp.MethodGet, procedure, token, input)
}

func (h *harness) mutate(procedure, token string, input any) (int, envelope) {
	return h.call(nethttp.MethodPost, procedure, token, input)
}

type projectJSON struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Title       string  `json:"title"`
	DatasetURL  *string `json:"datasetUrl"`
	StoryBlocks []struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Order   int             `json:"order"`
		Content json.RawMessage `json:"content"`
	} `json:"storyBlocks"`
}

func TestProtectedProceduresRequireToken(t *testing.T) {
	h := newHarness(t, stubImages{})

	status, env := h.query("getProjects", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Code)

	status, _ = h.query("getProjects", "not-a-token", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestProjectLifecycleOverRPC(t *testing.T) {
	h := newHarness(t, stubImages{})
	tok := h.token("user_" + uuid.NewString())

	status, env := h.mutate("createProject", tok, map[string]any{"title": "Churn story"})
	require.Equal(t, nethttp.StatusOK, status, "create: %+v", env.Error)
	var created projectJSON
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Churn story", created.Title)

	status, env = h.query("getProjectById", tok, map[string]any{"id": created.ID})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, string(env.Data), `"storyBlocks":[]`)

	var blockIDs []string
	for _, bt := range []string{"heading", "paragraph", "chart"} {
		status, env = h.mutate("addStoryBlock", tok, map[string]any{"projectId": created.ID, "type": bt})
		require.Equal(t, nethttp.StatusOK, status, "add %s: %+v", bt, env.Error)
		var b struct {
			ID    string `json:"id"`
			Order int    `json:"order"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &b))
		assert.Equal(t, len(blockIDs), b.Order)
		blockIDs = append(blockIDs, b.ID)
	}

	reordered := []string{blockIDs[2], blockIDs[0], blockIDs[1]}
	status, env = h.mutate("updateBlockOrder", tok, map[string]any{"projectId": created.ID, "orderedIds": reordered})
	require.Equal(t, nethttp.StatusOK, status, "reorder: %+v", env.Error)
	assert.JSONEq(t, `{"success":true}`, string(env.Data))

	status, env = h.query("getProjectById", tok, map[string]any{"id": created.ID})
	require.Equal(t, nethttp.StatusOK, status)
	var loaded projectJSON
	require.NoError(t, json.Unmarshal(env.Data, &loaded))
	require.Len(t, loaded.StoryBlocks, 3)
	for i, b := range loaded.StoryBlocks {
		assert.Equal(t, reordered[i], b.ID)
		assert.Equal(t, i, b.Order)
	}
	assert.JSONEq(t, `{"text":"New Heading"}`, string(loaded.StoryBlocks[1].Content))

	status, env = h.query("getProjects", tok, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var list []projectJSON
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	status, _ = h.mutate("deleteProject", tok, map[string]any{"projectId": created.ID})
	require.Equal(t, nethttp.StatusOK, status)
	status, env = h.query("getProjectById", tok, map[string]any{"id": created.ID})
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "project_not_found", env.Error.Code)
}

func TestPublicProjectNeedsNoToken(t *testing.T) {
	h := newHarness(t, stubImages{})
	owner := "user_" + uuid.NewString()
	tok := h.token(owner)

	_, env := h.mutate("createProject", tok, map[string]any{"title": "Shared"})
	var created projectJSON
	require.NoError(t, json.Unmarshal(env.Data, &created))
	status, _ := h.mutate("linkDatasetToProject", tok, map[string]any{"projectId": created.ID, "fileUrl": "https://files.example/private.csv"})
	require.Equal(t, nethttp.StatusOK, status)

	status, env = h.query("getPublicProjectById", "", map[string]any{"projectId": created.ID})
	require.Equal(t, nethttp.StatusOK, status)
	assert.NotContains(t, string(env.Data), "userId")
	assert.NotContains(t, string(env.Data), "private.csv")
	assert.NotContains(t, string(env.Data), owner)

	for _, id := range []string{uuid.NewString(), "not-an-id"} {
		status, env = h.query("getPublicProjectById", "", map[string]any{"projectId": id})
		require.Equal(t, nethttp.StatusOK, status)
		assert.Equal(t, "null", string(env.Data))
	}
}

func TestMutationErrorsMapToEnvelope(t *testing.T) {
	h := newHarness(t, stubImages{})
	owner := h.token("user_" + uuid.NewString())
	intruder := h.token("user_" + uuid.NewString())

	status, env := h.mutate("createProject", owner, map[string]any{"title": "   "})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", env.Error.Code)

	_, env = h.mutate("createProject", owner, map[string]any{"title": "Mine"})
	var created projectJSON
	require.NoError(t, json.Unmarshal(env.Data, &created))

	status, env = h.mutate("updateProjectTitle", intruder, map[string]any{"projectId": created.ID, "title": "Theirs"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Error.Code)

	status, env = h.mutate("updateBlockOrder", owner, map[string]any{"projectId": created.ID, "orderedIds": []string{"x"}})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", env.Error.Code)

	status, env = h.query("getProjectDataset", owner, map[string]any{"projectId": created.ID})
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "dataset_not_found", env.Error.Code)

	req := httptest.NewRequest(nethttp.MethodPost, httpH.RPCPrefix+"createProject", bytes.NewReader([]byte(`{"title":`)))
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestImageSearchHidesUpstreamDetail(t *testing.T) {
	h := newHarness(t, stubImages{err: &httpx.StatusError{Upstream: "unsplash", Status: 401, Body: "bad client id abc123"}})
	status, env := h.query("searchUnsplashImages", h.token("user_1"), map[string]any{"query": "sea"})
	assert.Equal(t, nethttp.StatusBadGateway, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "upstream_failed", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "abc123")

	ok := newHarness(t, stubImages{imgs: []unsplash.Image{{ID: "a", URL: "https://img/a", Author: "Ann"}}})
	status, env = ok.query("searchUnsplashImages", ok.token("user_1"), map[string]any{"query": "sea"})
	require.Equal(t, nethttp.StatusOK, status)
	assert.JSONEq(t, `[{"id":"a","url":"https://img/a","alt":null,"author":"Ann"}]`, string(env.Data))
}

func TestHealthcheck(t *testing.T) {
	h := newHarness(t, stubImages{})
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
