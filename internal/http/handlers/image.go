package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type ImageHandler struct {
	log          *logger.Logger
	imageService services.ImageSearchService
}

func NewImageHandler(log *logger.Logger, imageService services.ImageSearchService) *ImageHandler {
	return &ImageHandler{log: log.With("handler", "ImageHandler"), imageService: imageService}
}

func (h *ImageHandler) Procedures() []Procedure {
	return []Procedure{{Name: "searchUnsplashImages", Kind: Query, Handle: h.SearchUnsplashImages}}
}

// query searchUnsplashImages {query}
func (h *ImageHandler) SearchUnsplashImages(c *gin.Context) {
	var in struct {
		Query string `json:"query"`
	}
	if !bindInput(c, h.log, &in) {
		return
	}
	imgs, err := h.imageService.Search(c.Request.Context(), in.Query)
	respond(c, h.log, imgs, err)
}
