package reel

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/flowbaker/runreel/pkg/domain"
)

func ContentHash(data []byte) string {
	sum := sha1.Sum(data)

	return hex.EncodeToString(sum[:])
}

// DeduplicateImages keeps the first image for every distinct content hash, in input order.
func DeduplicateImages(images []domain.FetchedImage) []domain.FetchedImage {
	seen := make(map[string]struct{}, len(images))
	unique := make([]domain.FetchedImage, 0, len(images))

	for _, image := range images {
		hash := ContentHash(image.Data)

		if _, ok := seen[hash]; ok {
			continue
		}

		seen[hash] = struct{}{}
		unique = append(unique, image)
	}

	return unique
}
