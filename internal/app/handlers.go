package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/http"
	httpH "github.com/yungbote/insightflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/insightflow-backend/internal/http/middleware"
	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Project    *httpH.ProjectHandler
	StoryBlock *httpH.StoryBlockHandler
	Dataset    *httpH.DatasetHandler
	Image      *httpH.ImageHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Project:    httpH.NewProjectHandler(log, services.Project),
		StoryBlock: httpH.NewStoryBlockHandler(log, services.StoryBlock),
		Dataset:    httpH.NewDatasetHandler(log, services.Dataset),
		Image:      httpH.NewImageHandler(log, services.ImageSearch),
	}
}

func wireServer(log *logger.Logger, cfg Config, services Services, handlers Handlers) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		Metrics:           observability.Current(),
		Timeout:           httpMW.TimeoutConfig{Duration: cfg.RPCTimeout},
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, services.Auth),
		ProjectHandler:    handlers.Project,
		StoryBlockHandler: handlers.StoryBlock,
		DatasetHandler:    handlers.Dataset,
		ImageHandler:      handlers.Image,
		HealthHandler:     handlers.Health,
	})
}
