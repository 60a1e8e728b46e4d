package reel

import (
	"testing"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicateImages(t *testing.T) {
	images := []domain.FetchedImage{
		{URL: "https://img/1.png", Data: []byte("first")},
		{URL: "https://img/2.png", Data: []byte("second")},
		{URL: "https://img/copy-of-1.png", Data: []byte("first")},
		{URL: "https://img/3.png", Data: []byte("third")},
		{URL: "https://img/copy-of-2.png", Data: []byte("second")},
	}

	unique := DeduplicateImages(images)

	assert.Equal(t, []domain.FetchedImage{
		{URL: "https://img/1.png", Data: []byte("first")},
		{URL: "https://img/2.png", Data: []byte("second")},
		{URL: "https://img/3.png", Data: []byte("third")},
	}, unique)
}

func TestDeduplicateImages_Empty(t *testing.T) {
	assert.Empty(t, DeduplicateImages(nil))
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", ContentHash([]byte("abc")))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}
