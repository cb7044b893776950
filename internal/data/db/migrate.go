package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}

// EnsureStoryIndexes adds the indexes gorm tags cannot express. Both statements
// are valid on postgres and sqlite.
func EnsureStoryIndexes(db *gorm.DB) error {
	// Dashboard listing: newest-updated first per owner.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_project_user_updated
		ON project (user_id, updated_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_project_user_updated: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_story_block_project_id
		ON story_block (project_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_story_block_project_id: %w", err)
	}

	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureStoryIndexes(s.db); err != nil {
		s.log.Error("Story index migration failed", "error", err)
		return err
	}
	return nil
}
