// Package textindex maintains the auxiliary keyword index over song
// metadata: lower-cased whitespace tokens from title, artist, and genre map
// to the set of song ids carrying them. It backs the free-text search
// endpoint, not the fingerprint matcher.
package textindex

import (
	"context"
	"strings"
)

// minTitleTokenLen filters filler words out of title tokens. Artist and
// genre tokens are indexed whole.
const minTitleTokenLen = 3

// Index is the text-index contract.
type Index interface {
	// IndexSong records the song's metadata tokens.
	IndexSong(ctx context.Context, songID int64, title, artist, genre string) error

	// SearchByText returns the union of song ids matching any token of the
	// query across the title, artist, and genre indexes.
	SearchByText(ctx context.Context, query string) ([]int64, error)
}

// tokenize splits s into lower-cased whitespace tokens, dropping tokens
// shorter than minLen.
func tokenize(s string, minLen int) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// titleTokens, artistTokens, and genreTokens apply the per-field rules.
func titleTokens(title string) []string { return tokenize(title, minTitleTokenLen) }
func artistTokens(artist string) []string { return tokenize(artist, 1) }
func genreTokens(genre string) []string { return tokenize(genre, 1) }

// queryTokens splits a search query the same way metadata is split.
func queryTokens(query string) []string { return tokenize(query, 1) }
