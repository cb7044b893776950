// Package editor drives one project's story editor: every edit is applied to
// the local cache first and reconciled with the server afterwards.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/insightflow-backend/internal/clientcache"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/domain/story"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

var (
	ErrNotLoaded    = errors.New("editor: project is not loaded")
	ErrUnknownBlock = errors.New("editor: unknown block")
	// ErrPendingBlock is returned when an edit targets a block the server
	// has not assigned an id to yet.
	ErrPendingBlock = errors.New("editor: block is still being created")
)

// API is the subset of the RPC client the editor calls.
type API interface {
	GetProjectByID(ctx context.Context, id uuid.UUID) (*types.Project, error)
	UpdateProjectTitle(ctx context.Context, projectID uuid.UUID, title string) (*types.Project, error)
	AddStoryBlock(ctx context.Context, projectID uuid.UUID, blockType types.BlockType, content json.RawMessage) (*types.StoryBlock, error)
	UpdateBlockOrder(ctx context.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error
	UpdateBlockContent(ctx context.Context, blockID uuid.UUID, content json.RawMessage) (*types.StoryBlock, error)
	DeleteStoryBlock(ctx context.Context, blockID uuid.UUID) error
	LinkDatasetToProject(ctx context.Context, projectID uuid.UUID, fileURL string) error
}

// ProjectKey is the cache key of a project view.
func ProjectKey(id uuid.UUID) string { return "project:" + id.String() }

// NewStore builds a project cache that loads through api.
func NewStore(log *logger.Logger, api API, notifier clientcache.Notifier) *clientcache.Store[ProjectView] {
	return clientcache.New(clientcache.Options[ProjectView]{
		Fetcher: func(ctx context.Context, key string) (ProjectView, error) {
			id, err := uuid.Parse(strings.TrimPrefix(key, "project:"))
			if err != nil {
				return ProjectView{}, fmt.Errorf("bad cache key %q: %w", key, err)
			}
			p, err := api.GetProjectByID(ctx, id)
			if err != nil {
				return ProjectView{}, err
			}
			if p == nil {
				return ProjectView{}, fmt.Errorf("project %s not found", id)
			}
			return viewFromProject(p), nil
		},
		Notifier: notifier,
		Clone:    ProjectView.Clone,
		Log:      log,
	})
}

type Session struct {
	projectID uuid.UUID
	key       string
	api       API
	cache     *clientcache.Store[ProjectView]
}

func NewSession(cache *clientcache.Store[ProjectView], api API, projectID uuid.UUID) *Session {
	return &Session{projectID: projectID, key: ProjectKey(projectID), api: api, cache: cache}
}

// Load fetches the project from the server into the cache.
func (s *Session) Load(ctx context.Context) (ProjectView, error) {
	return s.cache.Fetch(ctx, s.key)
}

// View is the current local state, optimistic edits included.
func (s *Session) View() (ProjectView, bool) {
	return s.cache.Get(s.key)
}

func (s *Session) current() (ProjectView, error) {
	v, ok := s.cache.Get(s.key)
	if !ok {
		return ProjectView{}, ErrNotLoaded
	}
	return v, nil
}

// AddBlock appends a block under a temporary id until the server replies.
// A nil content uses the type's default.
func (s *Session) AddBlock(ctx context.Context, blockType types.BlockType, content json.RawMessage) error {
	if _, err := s.current(); err != nil {
		return err
	}
	shown, err := provisionalContent(blockType, content)
	if err != nil {
		return err
	}
	tmp := BlockView{ID: TempIDPrefix + uuid.NewString(), Type: blockType, Content: shown}
	return clientcache.Mutate(ctx, s.cache, clientcache.Mutation[ProjectView]{
		Key: s.key,
		Apply: func(v ProjectView, _ bool) ProjectView {
			orders := make([]int, 0, len(v.Blocks))
			for _, b := range v.Blocks {
				orders = append(orders, b.Order)
			}
			tmp.Order = story.NextBlockOrder(orders)
			v.Blocks = append(v.Blocks, tmp)
			return v
		},
		Call: func(ctx context.Context) error {
			_, err := s.api.AddStoryBlock(ctx, s.projectID, blockType, content)
			return err
		},
		FailureMessage: "Could not add block",
	})
}

// MoveBlock moves activeID to the position currently held by overID.
func (s *Session) MoveBlock(ctx context.Context, activeID, overID string) error {
	v, err := s.current()
	if err != nil {
		return err
	}
	if activeID == overID {
		return nil
	}
	from, to := v.indexOf(activeID), v.indexOf(overID)
	if from < 0 || to < 0 {
		return ErrUnknownBlock
	}
	moved := ArrayMove(v.Blocks, from, to)
	ids := make([]uuid.UUID, 0, len(moved))
	for _, b := range moved {
		if b.IsTemp() {
			return ErrPendingBlock
		}
		id, err := uuid.Parse(b.ID)
		if err != nil {
			return fmt.Errorf("block %q: %w", b.ID, err)
		}
		ids = append(ids, id)
	}
	return clientcache.Mutate(ctx, s.cache, clientcache.Mutation[ProjectView]{
		Key: s.key,
		Apply: func(v ProjectView, _ bool) ProjectView {
			from, to := v.indexOf(activeID), v.indexOf(overID)
			v.Blocks = ArrayMove(v.Blocks, from, to)
			for i := range v.Blocks {
				v.Blocks[i].Order = i
			}
			return v
		},
		Call: func(ctx context.Context) error {
			return s.api.UpdateBlockOrder(ctx, s.projectID, ids)
		},
		FailureMessage: "Could not reorder blocks",
	})
}

func (s *Session) UpdateContent(ctx context.Context, blockID string, content json.RawMessage) error {
	id, err := s.serverBlockID(blockID)
	if err != nil {
		return err
	}
	return clientcache.Mutate(ctx, s.cache, clientcache.Mutation[ProjectView]{
		Key: s.key,
		Apply: func(v ProjectView, _ bool) ProjectView {
			if i := v.indexOf(blockID); i >= 0 {
				v.Blocks[i].Content = append(json.RawMessage(nil), content...)
			}
			return v
		},
		Call: func(ctx context.Context) error {
			_, err := s.api.UpdateBlockContent(ctx, id, content)
			return err
		},
		FailureMessage: "Could not save block",
	})
}

func (s *Session) DeleteBlock(ctx context.Context, blockID string) error {
	id, err := s.serverBlockID(blockID)
	if err != nil {
		return err
	}
	return clientcache.Mutate(ctx, s.cache, clientcache.Mutation[ProjectView]{
		Key: s.key,
		Apply: func(v ProjectView, _ bool) ProjectView {
			if i := v.indexOf(blockID); i >= 0 {
				v.Blocks = append(v.Blocks[:i], v.Blocks[i+1:]...)
			}
			return v
		},
		Call: func(ctx context.Context) error {
			return s.api.DeleteStoryBlock(ctx, id)
		},
		FailureMessage: "Could not delete block",
	})
}

func (s *Session) RenameProject(ctx context.Context, title string) error {
	if _, err := s.current(); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(title)
	return clientcache.Mutate(ctx, s.cache, clientcache.Mutation[ProjectView]{
		Key: s.key,
		Apply: func(v ProjectView, _ bool) ProjectView {
			v.Title = trimmed
			return v
		},
		Call: func(ctx context.Context) error {
			_, err := s.api.UpdateProjectTitle(ctx, s.projectID, title)
			return err
		},
		FailureMessage: "Could not rename project",
	})
}

func (s *Session) LinkDataset(ctx context.Context, fileURL string) error {
	if _, err := s.current(); err != nil {
		return err
	}
	return clientcache.Mutate(ctx, s.cache, clientcache.Mutation[ProjectView]{
		Key: s.key,
		Apply: func(v ProjectView, _ bool) ProjectView {
			u := fileURL
			v.DatasetURL = &u
			return v
		},
		Call: func(ctx context.Context) error {
			return s.api.LinkDatasetToProject(ctx, s.projectID, fileURL)
		},
		FailureMessage: "Could not link dataset",
	})
}

func (s *Session) serverBlockID(blockID string) (uuid.UUID, error) {
	v, err := s.current()
	if err != nil {
		return uuid.Nil, err
	}
	i := v.indexOf(blockID)
	if i < 0 {
		return uuid.Nil, ErrUnknownBlock
	}
	if v.Blocks[i].IsTemp() {
		return uuid.Nil, ErrPendingBlock
	}
	return uuid.Parse(blockID)
}

// provisionalContent is what the view shows before the server canonicalizes
// the block. It is the type's default when content is empty.
func provisionalContent(blockType types.BlockType, content json.RawMessage) (json.RawMessage, error) {
	if len(content) > 0 && string(content) != "null" {
		return append(json.RawMessage(nil), content...), nil
	}
	def, err := story.DefaultContent(blockType)
	if err != nil {
		return nil, err
	}
	raw, err := story.EncodeContent(def)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
