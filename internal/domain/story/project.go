package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxTitleRunes = 200

type Project struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string       `gorm:"not null;index;column:user_id" json:"userId"`
	Title       string       `gorm:"not null;column:title" json:"title"`
	Description *string      `gorm:"type:text;column:description" json:"description"`
	DatasetURL  *string      `gorm:"column:dataset_url" json:"datasetUrl"`
	StoryBlocks []StoryBlock `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE" json:"storyBlocks,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updatedAt"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Project) OwnedBy(userID string) bool {
	return p != nil && userID != "" && p.UserID == userID
}

// PublicProject is the unauthenticated read-only view of a project. It never
// carries the owner or the dataset locator.
type PublicProject struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	StoryBlocks []StoryBlock `json:"storyBlocks"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (p *Project) Public() *PublicProject {
	if p == nil {
		return nil
	}
	blocks := make([]StoryBlock, len(p.StoryBlocks))
	copy(blocks, p.StoryBlocks)
	SortBlocks(blocks)
	return &PublicProject{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		StoryBlocks: blocks,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
