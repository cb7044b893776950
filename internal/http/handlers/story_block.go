package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type StoryBlockHandler struct {
	log          *logger.Logger
	blockService services.StoryBlockService
}

func NewStoryBlockHandler(log *logger.Logger, blockService services.StoryBlockService) *StoryBlockHandler {
	return &StoryBlockHandler{log: log.With("handler", "StoryBlockHandler"), blockService: blockService}
}

func (h *StoryBlockHandler) Procedures() []Procedure {
	return []Procedure{
		{Name: "addStoryBlock", Kind: Mutation, Handle: h.AddStoryBlock},
		{Name: "updateBlockOrder", Kind: Mutation, Handle: h.UpdateBlockOrder},
		{Name: "updateBlockContent", Kind: Mutation, Handle: h.UpdateBlockContent},
		{Name: "deleteStoryBlock", Kind: Mutation, Handle: h.DeleteStoryBlock},
	}
}

// mutation addStoryBlock {projectId, type, content?}
func (h *StoryBlockHandler) AddStoryBlock(c *gin.Context) {
	var in struct {
		ProjectID string          `json:"projectId"`
		Type      string          `json:"type"`
		Content   json.RawMessage `json:"content"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("projectId", in.ProjectID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	b, err := h.blockService.Add(dbctx.Context{Ctx: c.Request.Context()}, services.AddBlockInput{
		ProjectID: id,
		Type:      in.Type,
		Content:   in.Content,
	})
	respond(c, h.log, b, err)
}

// mutation updateBlockOrder {projectId, orderedIds}
func (h *StoryBlockHandler) UpdateBlockOrder(c *gin.Context) {
	var in struct {
		ProjectID  string   `json:"projectId"`
		OrderedIDs []string `json:"orderedIds"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	projectID, err := services.ParseID("projectId", in.ProjectID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ordered := make([]uuid.UUID, 0, len(in.OrderedIDs))
	for _, raw := range in.OrderedIDs {
		id, err := services.ParseID("orderedIds", raw)
		if err != nil {
			fail(c, h.log, err)
			return
		}
		ordered = append(ordered, id)
	}
	respond(c, h.log, success, h.blockService.UpdateOrder(dbctx.Context{Ctx: c.Request.Context()}, projectID, ordered))
}

// mutation updateBlockContent {blockId, content}
func (h *StoryBlockHandler) UpdateBlockContent(c *gin.Context) {
	var in struct {
		BlockID string          `json:"blockId"`
		Content json.RawMessage `json:"content"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("blockId", in.BlockID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	b, err := h.blockService.UpdateContent(dbctx.Context{Ctx: c.Request.Context()}, id, in.Content)
	respond(c, h.log, b, err)
}

// mutation deleteStoryBlock {blockId}
func (h *StoryBlockHandler) DeleteStoryBlock(c *gin.Context) {
	var in struct {
		BlockID string `json:"blockId"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("blockId", in.BlockID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, h.log, success, h.blockService.Delete(dbctx.Context{Ctx: c.Request.Context()}, id))
}
