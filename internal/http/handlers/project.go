package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type ProjectHandler struct {
	log            *logger.Logger
	projectService services.ProjectService
}

func NewProjectHandler(log *logger.Logger, projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{log: log.With("handler", "ProjectHandler"), projectService: projectService}
}

// projectDetail always carries storyBlocks, even when empty.
type projectDetail struct {
	*types.Project
	StoryBlocks []types.StoryBlock `json:"storyBlocks"`
}

func (h *ProjectHandler) Procedures() []Procedure {
	return []Procedure{
		{Name: "getProjects", Kind: Query, Handle: h.GetProjects},
		{Name: "createProject", Kind: Mutation, Handle: h.CreateProject},
		{Name: "getProjectById", Kind: Query, Handle: h.GetProjectByID},
		{Name: "getPublicProjectById", Kind: Query, Public: true, Handle: h.GetPublicProjectByID},
		{Name: "updateProjectTitle", Kind: Mutation, Handle: h.UpdateProjectTitle},
		{Name: "deleteProject", Kind: Mutation, Handle: h.DeleteProject},
		{Name: "linkDatasetToProject", Kind: Mutation, Handle: h.LinkDatasetToProject},
	}
}

// query getProjects
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	projects, err := h.projectService.List(dbctx.Context{Ctx: c.Request.Context()})
	respond(c, h.log, projects, err)
}

// mutation createProject {title, description?}
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var in struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	p, err := h.projectService.Create(dbctx.Context{Ctx: c.Request.Context()}, services.CreateProjectInput{
		Title:       in.Title,
		Description: in.Description,
	})
	respond(c, h.log, p, err)
}

// query getProjectById {id}
func (h *ProjectHandler) GetProjectByID(c *gin.Context) {
	var in struct {
		ID string `json:"id"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("id", in.ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	p, err := h.projectService.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	blocks := p.StoryBlocks
	if blocks == nil {
		blocks = []types.StoryBlock{}
	}
	respond(c, h.log, projectDetail{Project: p, StoryBlocks: blocks}, nil)
}

// query getPublicProjectById {projectId}; an unknown or malformed id yields null.
func (h *ProjectHandler) GetPublicProjectByID(c *gin.Context) {
	var in struct {
		ProjectID string `json:"projectId"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("projectId", in.ProjectID)
	if err != nil {
		respond(c, h.log, nil, nil)
		return
	}
	pub, err := h.projectService.GetPublic(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil || pub == nil {
		respond(c, h.log, nil, err)
		return
	}
	if pub.StoryBlocks == nil {
		pub.StoryBlocks = []types.StoryBlock{}
	}
	respond(c, h.log, pub, nil)
}

// mutation updateProjectTitle {projectId, title}
func (h *ProjectHandler) UpdateProjectTitle(c *gin.Context) {
	var in struct {
		ProjectID string `json:"projectId"`
		Title     string `json:"title"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("projectId", in.ProjectID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	p, err := h.projectService.UpdateTitle(dbctx.Context{Ctx: c.Request.Context()}, id, in.Title)
	respond(c, h.log, p, err)
}

// mutation deleteProject {projectId}
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	var in struct {
		ProjectID string `json:"projectId"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("projectId", in.ProjectID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, h.log, success, h.projectService.Delete(dbctx.Context{Ctx: c.Request.Context()}, id))
}

// mutation linkDatasetToProject {projectId, fileUrl}
func (h *ProjectHandler) LinkDatasetToProject(c *gin.Context) {
	var in struct {
		ProjectID string `json:"projectId"`
		FileURL   string `json:"fileUrl"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	id, err := services.ParseID("projectId", in.ProjectID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, h.log, success, h.projectService.LinkDataset(dbctx.Context{Ctx: c.Request.Context()}, id, in.FileURL))
}
