package story

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StoryBlock struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;column:project_id;uniqueIndex:idx_story_block_project_order,priority:1" json:"projectId"`
	Type      BlockType      `gorm:"not null;column:type" json:"type"`
	Content   datatypes.JSON `gorm:"not null;column:content" json:"content"`
	Order     int            `gorm:"not null;column:block_order;uniqueIndex:idx_story_block_project_order,priority:2" json:"order"`
	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
}

func (StoryBlock) TableName() string { return "story_block" }

func (b *StoryBlock) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Decoded returns the typed content of the block.
func (b *StoryBlock) Decoded() (BlockContent, error) {
	return DecodeContent(b.Type, b.Content)
}

// SortBlocks sorts blocks into display order. Ties, which only appear in
// corrupted data, fall back to creation time.
func SortBlocks(blocks []StoryBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Order != blocks[j].Order {
			return blocks[i].Order < blocks[j].Order
		}
		return blocks[i].CreatedAt.Before(blocks[j].CreatedAt)
	})
}
