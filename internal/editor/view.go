package editor

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/domain/story"
)

// TempIDPrefix marks blocks that exist only in the local cache.
const TempIDPrefix = "tmp-"

type BlockView struct {
	ID      string          `json:"id"`
	Type    types.BlockType `json:"type"`
	Content json.RawMessage `json:"content"`
	Order   int             `json:"order"`
}

func (b BlockView) IsTemp() bool { return strings.HasPrefix(b.ID, TempIDPrefix) }

// ProjectView is the editor's cached copy of one project.
type ProjectView struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	DatasetURL  *string     `json:"datasetUrl"`
	Blocks      []BlockView `json:"blocks"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func viewFromProject(p *types.Project) ProjectView {
	v := ProjectView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		DatasetURL:  p.DatasetURL,
		UpdatedAt:   p.UpdatedAt,
		Blocks:      make([]BlockView, 0, len(p.StoryBlocks)),
	}
	blocks := append([]types.StoryBlock(nil), p.StoryBlocks...)
	story.SortBlocks(blocks)
	for _, b := range blocks {
		v.Blocks = append(v.Blocks, BlockView{
			ID:      b.ID.String(),
			Type:    b.Type,
			Content: json.RawMessage(append([]byte(nil), b.Content...)),
			Order:   b.Order,
		})
	}
	return v
}

// Clone deep-copies v so a speculative edit never aliases cached state.
func (v ProjectView) Clone() ProjectView {
	out := v
	if v.Description != nil {
		d := *v.Description
		out.Description = &d
	}
	if v.DatasetURL != nil {
		u := *v.DatasetURL
		out.DatasetURL = &u
	}
	out.Blocks = make([]BlockView, len(v.Blocks))
	for i, b := range v.Blocks {
		b.Content = append(json.RawMessage(nil), b.Content...)
		out.Blocks[i] = b
	}
	return out
}

func (v ProjectView) indexOf(blockID string) int {
	for i, b := range v.Blocks {
		if b.ID == blockID {
			return i
		}
	}
	return -1
}

// ArrayMove moves the element at from to index to, shifting the ones between.
// It returns a new slice.
func ArrayMove[T any](s []T, from, to int) []T {
	out := append([]T(nil), s...)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
