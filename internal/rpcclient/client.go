// Package rpcclient is a typed client for the /api/rpc procedures.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/insightflow-backend/internal/clients/unsplash"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
)

const rpcPath = "/api/rpc/"

// Error is a failed procedure call as reported by the server.
type Error struct {
	Procedure string
	Status    int
	Code      string
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d %s)", e.Procedure, e.Message, e.Status, e.Code)
}

func (e *Error) HTTPStatusCode() int { return e.Status }

// TokenSource returns the bearer token for a call, or "" for anonymous calls.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.token = ts } }

// WithToken uses one fixed bearer token.
func WithToken(token string) Option {
	return WithTokenSource(func(context.Context) (string, error) { return token, nil })
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Success struct {
	Success bool `json:"success"`
}

func (c *Client) GetProjects(ctx context.Context) ([]types.Project, error) {
	return call[[]types.Project](ctx, c, http.MethodGet, "getProjects", nil)
}

func (c *Client) CreateProject(ctx context.Context, title string, description *string) (*types.Project, error) {
	return call[*types.Project](ctx, c, http.MethodPost, "createProject", map[string]any{"title": title, "description": description})
}

func (c *Client) GetProjectByID(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	return call[*types.Project](ctx, c, http.MethodGet, "getProjectById", map[string]any{"id": id})
}

// GetPublicProjectByID returns nil for an unknown project.
func (c *Client) GetPublicProjectByID(ctx context.Context, id uuid.UUID) (*types.PublicProject, error) {
	return call[*types.PublicProject](ctx, c, http.MethodGet, "getPublicProjectById", map[string]any{"projectId": id})
}

func (c *Client) UpdateProjectTitle(ctx context.Context, projectID uuid.UUID, title string) (*types.Project, error) {
	return call[*types.Project](ctx, c, http.MethodPost, "updateProjectTitle", map[string]any{"projectId": projectID, "title": title})
}

func (c *Client) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := call[Success](ctx, c, http.MethodPost, "deleteProject", map[string]any{"projectId": projectID})
	return err
}

// AddStoryBlock appends a block. A nil content asks the server for the type's
// default.
func (c *Client) AddStoryBlock(ctx context.Context, projectID uuid.UUID, blockType types.BlockType, content json.RawMessage) (*types.StoryBlock, error) {
	in := map[string]any{"projectId": projectID, "type": blockType}
	if content != nil {
		in["content"] = content
	}
	return call[*types.StoryBlock](ctx, c, http.MethodPost, "addStoryBlock", in)
}

func (c *Client) UpdateBlockOrder(ctx context.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error {
	_, err := call[Success](ctx, c, http.MethodPost, "updateBlockOrder", map[string]any{"projectId": projectID, "orderedIds": orderedIDs})
	return err
}

func (c *Client) UpdateBlockContent(ctx context.Context, blockID uuid.UUID, content json.RawMessage) (*types.StoryBlock, error) {
	return call[*types.StoryBlock](ctx, c, http.MethodPost, "updateBlockContent", map[string]any{"blockId": blockID, "content": content})
}

func (c *Client) DeleteStoryBlock(ctx context.Context, blockID uuid.UUID) error {
	_, err := call[Success](ctx, c, http.MethodPost, "deleteStoryBlock", map[string]any{"blockId": blockID})
	return err
}

func (c *Client) LinkDatasetToProject(ctx context.Context, projectID uuid.UUID, fileURL string) error {
	_, err := call[Success](ctx, c, http.MethodPost, "linkDatasetToProject", map[string]any{"projectId": projectID, "fileUrl": fileURL})
	return err
}

func (c *Client) GetProjectDataset(ctx context.Context, projectID uuid.UUID) (*tabular.Dataset, error) {
	return call[*tabular.Dataset](ctx, c, http.MethodGet, "getProjectDataset", map[string]any{"projectId": projectID})
}

func (c *Client) SearchUnsplashImages(ctx context.Context, query string) ([]unsplash.Image, error) {
	return call[[]unsplash.Image](ctx, c, http.MethodGet, "searchUnsplashImages", map[string]any{"query": query})
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func call[T any](ctx context.Context, c *Client, method, procedure string, input any) (T, error) {
	var zero T

	target := c.baseURL + rpcPath + procedure
	var body io.Reader
	if input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			return zero, fmt.Errorf("%s: encode input: %w", procedure, err)
		}
		if method == http.MethodGet {
			target += "?input=" + url.QueryEscape(string(raw))
		} else {
			body = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return zero, fmt.Errorf("%s: token: %w", procedure, err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", procedure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return zero, fmt.Errorf("%s: read response: %w", procedure, err)
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return zero, &Error{Procedure: procedure, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return zero, fmt.Errorf("%s: decode response: %w", procedure, err)
	}
	if resp.StatusCode >= 300 || env.Error != nil {
		e := &Error{Procedure: procedure, Status: resp.StatusCode}
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Message = env.Error.Message
		}
		return zero, e
	}
	return env.Data, nil
}
