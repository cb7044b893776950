package story

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"
)

type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockChart     BlockType = "chart"
	BlockImage     BlockType = "image"
	BlockVideo     BlockType = "video"
)

var BlockTypes = []BlockType{BlockHeading, BlockParagraph, BlockChart, BlockImage, BlockVideo}

func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range BlockTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown block type %q", s)
}

type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartPie     ChartType = "pie"
	ChartScatter ChartType = "scatter"
)

const (
	MaxHeadingRunes = 500
	DefaultHeading  = "New Heading"
)

var ErrInvalidContent = errors.New("invalid block content")

// BlockContent is the closed set of block payloads. Only the variants in this
// package implement it.
type BlockContent interface {
	BlockType() BlockType
	isBlockContent()
}

type HeadingContent struct {
	Text string `json:"text"`
}

// ParagraphContent is a rich-text document: {"type":"doc","content":[...]}.
type ParagraphContent struct {
	Type    string            `json:"type"`
	Content []json.RawMessage `json:"content"`
}

type ChartContent struct {
	ChartType ChartType `json:"chartType"`
	XKey      string    `json:"xKey"`
	YKey      string    `json:"yKey"`
}

type ImageContent struct {
	URL *string `json:"url"`
	Alt *string `json:"alt"`
}

type VideoContent struct {
	URL *string `json:"url"`
}

func (HeadingContent) BlockType() BlockType   { return BlockHeading }
func (ParagraphContent) BlockType() BlockType { return BlockParagraph }
func (ChartContent) BlockType() BlockType     { return BlockChart }
func (ImageContent) BlockType() BlockType     { return BlockImage }
func (VideoContent) BlockType() BlockType     { return BlockVideo }

func (HeadingContent) isBlockContent()   {}
func (ParagraphContent) isBlockContent() {}
func (ChartContent) isBlockContent()     {}
func (ImageContent) isBlockContent()     {}
func (VideoContent) isBlockContent()     {}

// ContentVisitor handles every block variant. Adding a variant adds a method
// here, so every visitor has to be updated before the build passes.
type ContentVisitor[R any] interface {
	Heading(HeadingContent) R
	Paragraph(ParagraphContent) R
	Chart(ChartContent) R
	Image(ImageContent) R
	Video(VideoContent) R
}

func VisitContent[R any](c BlockContent, v ContentVisitor[R]) R {
	switch x := c.(type) {
	case HeadingContent:
		return v.Heading(x)
	case ParagraphContent:
		return v.Paragraph(x)
	case ChartContent:
		return v.Chart(x)
	case ImageContent:
		return v.Image(x)
	case VideoContent:
		return v.Video(x)
	default:
		panic(fmt.Sprintf("story: unhandled block content %T", c))
	}
}

func DefaultContent(t BlockType) (BlockContent, error) {
	switch t {
	case BlockHeading:
		return HeadingContent{Text: DefaultHeading}, nil
	case BlockParagraph:
		return ParagraphContent{Type: "doc", Content: []json.RawMessage{json.RawMessage(`{"type":"paragraph"}`)}}, nil
	case BlockChart:
		return ChartContent{ChartType: ChartBar}, nil
	case BlockImage:
		return ImageContent{}, nil
	case BlockVideo:
		return VideoContent{}, nil
	default:
		return nil, fmt.Errorf("unknown block type %q", t)
	}
}

// DecodeContent parses raw as the payload for t and validates it. Empty or null
// input yields the type's default content.
func DecodeContent(t BlockType, raw []byte) (BlockContent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return DefaultContent(t)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %s content must be an object", ErrInvalidContent, t)
	}

	var c BlockContent
	switch t {
	case BlockHeading:
		var h HeadingContent
		if err := json.Unmarshal(trimmed, &h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = h
	case BlockParagraph:
		var p ParagraphContent
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = p
	case BlockChart:
		var wire struct {
			ChartType *string `json:"chartType"`
			Type      *string `json:"type"`
			XKey      string  `json:"xKey"`
			YKey      string  `json:"yKey"`
		}
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		ct := ChartBar
		if wire.ChartType != nil {
			ct = ChartType(strings.ToLower(strings.TrimSpace(*wire.ChartType)))
		} else if wire.Type != nil {
			ct = ChartType(strings.ToLower(strings.TrimSpace(*wire.Type)))
		}
		c = ChartContent{ChartType: ct, XKey: strings.TrimSpace(wire.XKey), YKey: strings.TrimSpace(wire.YKey)}
	case BlockImage:
		var im ImageContent
		if err := json.Unmarshal(trimmed, &im); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = im
	case BlockVideo:
		var v VideoContent
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = v
	default:
		return nil, fmt.Errorf("unknown block type %q", t)
	}

	return Normalize(c)
}

// Normalize validates c and returns its canonical form.
func Normalize(c BlockContent) (BlockContent, error) {
	out, err := VisitContent[normalized](c, normalizer{}).unpack()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return out, nil
}

// EncodeContent renders c for the content column.
func EncodeContent(c BlockContent) (datatypes.JSON, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

type normalized struct {
	c   BlockContent
	err error
}

func (n normalized) unpack() (BlockContent, error) { return n.c, n.err }

type normalizer struct{}

func (normalizer) Heading(h HeadingContent) normalized {
	if utf8.RuneCountInString(h.Text) > MaxHeadingRunes {
		return normalized{err: fmt.Errorf("heading text exceeds %d characters", MaxHeadingRunes)}
	}
	return normalized{c: h}
}

func (normalizer) Paragraph(p ParagraphContent) normalized {
	if p.Type != "doc" {
		return normalized{err: fmt.Errorf("paragraph document type must be \"doc\", got %q", p.Type)}
	}
	if p.Content == nil {
		p.Content = []json.RawMessage{}
	}
	for i, node := range p.Content {
		n := bytes.TrimSpace(node)
		if len(n) == 0 || n[0] != '{' {
			return normalized{err: fmt.Errorf("paragraph node %d must be an object", i)}
		}
	}
	return normalized{c: p}
}

func (normalizer) Chart(c ChartContent) normalized {
	switch c.ChartType {
	case ChartBar, ChartLine, ChartPie, ChartScatter:
		return normalized{c: c}
	default:
		return normalized{err: fmt.Errorf("unsupported chart type %q", c.ChartType)}
	}
}

func (normalizer) Image(im ImageContent) normalized {
	im.URL = blankToNil(im.URL)
	im.Alt = blankToNil(im.Alt)
	if im.URL != nil && !isAbsoluteHTTP(*im.URL) {
		return normalized{err: fmt.Errorf("image url must be an absolute http(s) url")}
	}
	return normalized{c: im}
}

var embedURLPattern = regexp.MustCompile(`https?://[^\s"']+`)

func (normalizer) Video(v VideoContent) normalized {
	v.URL = blankToNil(v.URL)
	if v.URL == nil {
		return normalized{c: v}
	}
	found := ExtractEmbedURL(*v.URL)
	if found == "" {
		return normalized{err: fmt.Errorf("video input contains no http(s) url")}
	}
	v.URL = &found
	return normalized{c: v}
}

// ExtractEmbedURL returns the first http(s) URL in a pasted link or embed
// snippet, or "" when there is none.
func ExtractEmbedURL(input string) string {
	return embedURLPattern.FindString(input)
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
