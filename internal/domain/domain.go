package domain

import "github.com/yungbote/insightflow-backend/internal/domain/story"

type Project = story.Project
type PublicProject = story.PublicProject
type StoryBlock = story.StoryBlock

type BlockType = story.BlockType
type BlockContent = story.BlockContent

const (
	BlockHeading   = story.BlockHeading
	BlockParagraph = story.BlockParagraph
	BlockChart     = story.BlockChart
	BlockImage     = story.BlockImage
	BlockVideo     = story.BlockVideo
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{&Project{}, &StoryBlock{}}
}
