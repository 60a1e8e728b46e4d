package reel

import "strings"

// LocalStorageOrigin is the object storage origin used by local development stacks.
const LocalStorageOrigin = "http://localhost:9100"

// StorageDomains are the public and private origins of the object storage bucket. Image
// references on the public origin are fetched through the private one.
type StorageDomains struct {
	Public  string
	Private string
}

func NormalizeImageURL(url string, domains StorageDomains) string {
	if url == "" {
		return ""
	}

	if domains.Public != "" && domains.Private != "" && strings.HasPrefix(url, domains.Public) {
		return domains.Private + strings.TrimPrefix(url, domains.Public)
	}

	if domains.Private != "" && strings.HasPrefix(url, LocalStorageOrigin) {
		return domains.Private + strings.TrimPrefix(url, LocalStorageOrigin)
	}

	return url
}
