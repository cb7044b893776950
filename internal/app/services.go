package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
	"github.com/yungbote/insightflow-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Project     services.ProjectService
	StoryBlock  services.StoryBlockService
	Dataset     services.DatasetService
	ImageSearch services.ImageSearchService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) Services {
	log.Info("Wiring services...")
	sources := services.DatasetSources{
		HTTP:    clients.HTTPFetch,
		Objects: clients.GCSObjects,
		Cache:   clients.DatasetCache,
	}
	return Services{
		Auth:        services.NewAuthService(log, cfg.JWTSecretKey),
		Project:     services.NewProjectService(db, log, repos.Project),
		StoryBlock:  services.NewStoryBlockService(db, log, repos.Project, repos.StoryBlock),
		Dataset:     services.NewDatasetService(db, log, repos.Project, sources, tabular.Options{MaxBytes: cfg.Dataset.Fetch.MaxBytes}),
		ImageSearch: services.NewImageSearchService(log, clients.Unsplash),
	}
}
