package reel

import (
	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/tidwall/gjson"
)

// ScanImageReferences walks message log records in order and returns every image URL they
// reference, normalized against the storage domains. Records whose payload cannot be parsed
// contribute nothing.
func ScanImageReferences(records []domain.MessageRecord, domains StorageDomains) []string {
	urls := []string{}

	for _, record := range records {
		messages, ok := parseMessages(record.Messages)
		if !ok {
			continue
		}

		for _, message := range messages.Array() {
			urls = append(urls, extractImageURLs(message, domains)...)
		}
	}

	return urls
}

// parseMessages accepts either a JSON array or a JSON string that holds one.
func parseMessages(payload []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, false
	}

	parsed := gjson.ParseBytes(payload)

	if parsed.Type == gjson.String {
		if !gjson.Valid(parsed.Str) {
			return gjson.Result{}, false
		}

		parsed = gjson.Parse(parsed.Str)
	}

	if !parsed.IsArray() {
		return gjson.Result{}, false
	}

	return parsed, true
}

func extractImageURLs(message gjson.Result, domains StorageDomains) []string {
	content := message.Get("content")
	if !content.IsArray() {
		return nil
	}

	urls := []string{}

	appendURL := func(block domain.ContentBlock) {
		if !block.IsImage() {
			return
		}

		if url := NormalizeImageURL(block.URL(), domains); url != "" {
			urls = append(urls, url)
		}
	}

	for _, item := range content.Array() {
		if !item.IsObject() {
			continue
		}

		block := domain.NewContentBlock(item)

		appendURL(block)

		for _, associated := range block.AssociatedData() {
			appendURL(associated)
		}
	}

	return urls
}

// UniqueReferences drops repeated URLs, keeping the first occurrence of each.
func UniqueReferences(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))

	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}

		seen[url] = struct{}{}
		unique = append(unique, url)
	}

	return unique
}
