package textindex

import (
	"context"
	"testing"
)

func TestTokenizeTitleDropsShortWords(t *testing.T) {
	got := titleTokens("In a Big Country")
	want := []string{"big", "country"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeArtistKeepsShortWords(t *testing.T) {
	got := artistTokens("U2")
	if len(got) != 1 || got[0] != "u2" {
		t.Errorf("got %v, want [u2]", got)
	}
}

func TestSearchByTextUnion(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()

	ix.IndexSong(ctx, 1, "Blue Train", "John Coltrane", "jazz")
	ix.IndexSong(ctx, 2, "Kind of Blue", "Miles Davis", "jazz")
	ix.IndexSong(ctx, 3, "Back in Black", "AC/DC", "rock")

	ids, err := ix.SearchByText(ctx, "blue")
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("expected [1 2], got %v", ids)
	}

	// Union across fields: one token hits genre, the other hits artist.
	ids, err = ix.SearchByText(ctx, "jazz davis")
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected union [1 2], got %v", ids)
	}
}

func TestSearchByTextCaseInsensitive(t *testing.T) {
	ix := NewMemoryIndex()
	ctx := context.Background()
	ix.IndexSong(ctx, 7, "Everlong", "Foo Fighters", "rock")

	ids, err := ix.SearchByText(ctx, "EVERLONG")
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("expected [7], got %v", ids)
	}
}

func TestSearchByTextNoMatches(t *testing.T) {
	ix := NewMemoryIndex()
	ids, err := ix.SearchByText(context.Background(), "nothing here")
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no hits, got %v", ids)
	}
}
