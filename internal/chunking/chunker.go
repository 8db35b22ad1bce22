// Package chunking implements the word-window chunker of spec §4.3: cleaned
// text is split into overlapping windows of word tokens before embedding.
package chunking

import "strings"

const (
	WindowSize    = 500
	WindowAdvance = 450 // overlap = WindowSize - WindowAdvance = 50
)

// Chunk splits text on whitespace into word tokens and emits windows of
// WindowSize tokens advancing by WindowAdvance. Empty windows are dropped.
func Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(words); start += WindowAdvance {
		end := start + WindowSize
		if end > len(words) {
			end = len(words)
		}
		window := strings.Join(words[start:end], " ")
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}
