package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/insightflow-backend/internal/domain"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, title string) *types.Project {
	tb.Helper()
	p := &types.Project{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedBlock(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, blockType types.BlockType, order int) *types.StoryBlock {
	tb.Helper()
	content := datatypes.JSON([]byte(`{"text":"seeded"}`))
	if blockType != types.BlockHeading {
		content = datatypes.JSON([]byte(`{}`))
	}
	b := &types.StoryBlock{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      blockType,
		Content:   content,
		Order:     order,
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed story block: %v", err)
	}
	return b
}

// BlockOrders returns id -> order for every block of the project.
func BlockOrders(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID) map[uuid.UUID]int {
	tb.Helper()
	var rows []types.StoryBlock
	if err := tx.WithContext(ctx).Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		tb.Fatalf("load block orders: %v", err)
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Order
	}
	return out
}
