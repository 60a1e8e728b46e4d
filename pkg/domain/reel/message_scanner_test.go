package reel

import (
	"testing"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func record(payload string) domain.MessageRecord {
	return domain.MessageRecord{
		FlowID:   "flow-1",
		RunID:    "run-1",
		Segment:  domain.MessageSegmentAgent,
		Messages: []byte(payload),
	}
}

func TestScanImageReferences(t *testing.T) {
	tests := []struct {
		name     string
		records  []domain.MessageRecord
		domains  StorageDomains
		expected []string
	}{
		{
			name:     "no records",
			records:  nil,
			expected: []string{},
		},
		{
			name: "image and image_url blocks",
			records: []domain.MessageRecord{
				record(`[{"role":"assistant","content":[
					{"type":"text","text":"hello"},
					{"type":"image","url":"https://img/1.png"},
					{"type":"image_url","image_url":{"url":"https://img/2.png"}}
				]}]`),
			},
			expected: []string{"https://img/1.png", "https://img/2.png"},
		},
		{
			name: "url wins over image_url.url",
			records: []domain.MessageRecord{
				record(`[{"content":[{"type":"image_url","url":"https://img/direct.png","image_url":{"url":"https://img/nested.png"}}]}]`),
			},
			expected: []string{"https://img/direct.png"},
		},
		{
			name: "associated data follows its parent block",
			records: []domain.MessageRecord{
				record(`[{"content":[
					{"type":"image","url":"https://img/parent.png","associatedData":[
						{"type":"image","url":"https://img/child-1.png"},
						{"type":"text","text":"ignored"},
						{"type":"image_url","image_url":{"url":"https://img/child-2.png"}}
					]},
					{"type":"image","url":"https://img/sibling.png"}
				]}]`),
				record(`[{"content":[{"type":"image","url":"https://img/later.png"}]}]`),
			},
			expected: []string{
				"https://img/parent.png",
				"https://img/child-1.png",
				"https://img/child-2.png",
				"https://img/sibling.png",
				"https://img/later.png",
			},
		},
		{
			name: "associated data of a text block",
			records: []domain.MessageRecord{
				record(`[{"content":[{"type":"text","text":"x","associatedData":[{"type":"image","url":"https://img/a.png"}]}]}]`),
			},
			expected: []string{"https://img/a.png"},
		},
		{
			name: "payload wrapped in a string",
			records: []domain.MessageRecord{
				record(`"[{\"content\":[{\"type\":\"image\",\"url\":\"https://img/1.png\"}]}]"`),
			},
			expected: []string{"https://img/1.png"},
		},
		{
			name: "malformed record is skipped",
			records: []domain.MessageRecord{
				record(`[{"content":[{"type":"image","url":"https://img/1.png"}]}]`),
				record(`{not json`),
				record(`"still not json"`),
				record(`{"content":[{"type":"image","url":"https://img/object.png"}]}`),
				record(`[{"content":[{"type":"image","url":"https://img/2.png"}]}]`),
			},
			expected: []string{"https://img/1.png", "https://img/2.png"},
		},
		{
			name: "missing and mistyped fields are ignored",
			records: []domain.MessageRecord{
				record(`[
					{"content":"plain text"},
					{"content":[null, 3, "x", {"type":"image"}, {"type":"image","url":42}, {"type":"image_url","image_url":"flat"}]},
					{"role":"user"}
				]`),
			},
			expected: []string{},
		},
		{
			name: "urls are normalized",
			records: []domain.MessageRecord{
				record(`[{"content":[{"type":"image","url":"https://cdn.example.com/a.png"},{"type":"image","url":"http://localhost:9100/b.png"}]}]`),
			},
			domains: StorageDomains{
				Public:  "https://cdn.example.com",
				Private: "http://minio:9000",
			},
			expected: []string{"http://minio:9000/a.png", "http://minio:9000/b.png"},
		},
		{
			name: "duplicates are kept",
			records: []domain.MessageRecord{
				record(`[{"content":[{"type":"image","url":"https://img/1.png"}]},{"content":[{"type":"image","url":"https://img/1.png"}]}]`),
			},
			expected: []string{"https://img/1.png", "https://img/1.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScanImageReferences(tt.records, tt.domains))
		})
	}
}

func TestUniqueReferences(t *testing.T) {
	urls := []string{"c", "a", "c", "b", "a"}

	assert.Equal(t, []string{"c", "a", "b"}, UniqueReferences(urls))
	assert.Empty(t, UniqueReferences(nil))
}
