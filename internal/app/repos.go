package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/data/repos"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type Repos struct {
	Project    repos.ProjectRepo
	StoryBlock repos.StoryBlockRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Project:    repos.NewProjectRepo(db, log),
		StoryBlock: repos.NewStoryBlockRepo(db, log),
	}
}
