package domain

import (
	"time"

	"github.com/tidwall/gjson"
)

type MessageSegment string

const (
	MessageSegmentAgent MessageSegment = "agent"
	MessageSegmentUser  MessageSegment = "user"
	MessageSegmentDebug MessageSegment = "debug"
)

// TimelineSegments are the message log segments that contribute frames to a run gif.
var TimelineSegments = []MessageSegment{
	MessageSegmentAgent,
	MessageSegmentUser,
	MessageSegmentDebug,
}

// MessageRecord is one row of the message log. Messages holds the raw payload, which is either a
// JSON array of messages or a JSON string wrapping one.
type MessageRecord struct {
	FlowID    string
	RunID     string
	Segment   MessageSegment
	Messages  []byte
	CreatedAt time.Time
}

type ContentBlockType string

const (
	ContentBlockTypeImage    ContentBlockType = "image"
	ContentBlockTypeImageURL ContentBlockType = "image_url"
)

// ContentBlock is a view over one element of a message's content array. Every accessor treats a
// missing or mistyped field as absent.
type ContentBlock struct {
	raw gjson.Result
}

func NewContentBlock(raw gjson.Result) ContentBlock {
	return ContentBlock{raw: raw}
}

func (b ContentBlock) Type() ContentBlockType {
	return ContentBlockType(stringValue(b.raw.Get("type")))
}

func (b ContentBlock) IsImage() bool {
	t := b.Type()

	return t == ContentBlockTypeImage || t == ContentBlockTypeImageURL
}

// URL returns the block's url field, falling back to image_url.url.
func (b ContentBlock) URL() string {
	if url := stringValue(b.raw.Get("url")); url != "" {
		return url
	}

	return stringValue(b.raw.Get("image_url.url"))
}

func (b ContentBlock) AssociatedData() []ContentBlock {
	associated := b.raw.Get("associatedData")
	if !associated.IsArray() {
		return nil
	}

	blocks := []ContentBlock{}

	for _, item := range associated.Array() {
		if !item.IsObject() {
			continue
		}

		blocks = append(blocks, NewContentBlock(item))
	}

	return blocks
}

func stringValue(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}

	return r.Str
}
