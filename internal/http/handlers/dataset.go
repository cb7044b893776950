package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type DatasetHandler struct {
	log            *logger.Logger
	datasetService services.DatasetService
}

func NewDatasetHandler(log *logger.Logger, datasetService services.DatasetService) *DatasetHandler {
	return &DatasetHandler{log: log.With("handler", "DatasetHandler"), datasetService: datasetService}
}

func (h *DatasetHandler) Procedures() []Procedure {
	return []Procedure{{Name: "getProjectDataset", Kind: Query, Handle: h.GetProjectDataset}}
}

// query getProjectDataset {projectId}
func (h *DatasetHandler) GetProjectDataset(c *gin.Context) {
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
	ds, err := h.datasetService.GetForProject(dbctx.Context{Ctx: c.Request.Context()}, id)
	respond(c, h.log, ds, err)
}
