package store

import (
	"context"
	"testing"

	"github.com/rcliao/agent-context/internal/model"
)

func TestTextIndex_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	idx := NewTextIndex(s)

	docs := []model.SearchDoc{
		{ID: "d1", Text: "Go is a compiled language with goroutines"},
		{ID: "d2", Text: "Python is an interpreted language"},
		{ID: "d3", Text: "Rust has a borrow checker"},
	}
	for _, d := range docs {
		if err := idx.Add(ctx, "facts", "u1", d); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	idx.Add(ctx, "facts", "u2", model.SearchDoc{ID: "d4", Text: "another language"})
	idx.Add(ctx, "long_term", "u1", model.SearchDoc{ID: "d5", Text: "language in another namespace"})

	hits, err := idx.Search(ctx, "facts", "u1", "language", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.Score <= 0 || h.Score >= 1 {
			t.Errorf("expected score in (0,1), got %f", h.Score)
		}
	}

	hits, _ = idx.Search(ctx, "facts", "u1", "goroutines compiled", 10)
	if len(hits) != 1 || hits[0].ID != "d1" {
		t.Fatalf("expected d1, got %+v", hits)
	}

	hits, _ = idx.Search(ctx, "facts", "u1", "javascript", 10)
	if len(hits) != 0 {
		t.Fatalf("expected 0 hits, got %d", len(hits))
	}

	hits, _ = idx.Search(ctx, "facts", "u1", "  ?? ", 10)
	if len(hits) != 0 {
		t.Fatalf("expected 0 hits for punctuation-only query, got %d", len(hits))
	}
}

func TestTextIndex_Replace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	idx := NewTextIndex(s)

	idx.Add(ctx, "facts", "u1", model.SearchDoc{ID: "d1", Text: "old words", Metadata: map[string]string{"v": "1"}})
	idx.Add(ctx, "facts", "u1", model.SearchDoc{ID: "d1", Text: "new words", Metadata: map[string]string{"v": "2"}})

	if hits, _ := idx.Search(ctx, "facts", "u1", "old", 10); len(hits) != 0 {
		t.Errorf("expected replaced text to be unsearchable, got %d hits", len(hits))
	}
	hits, _ := idx.Search(ctx, "facts", "u1", "new", 10)
	if len(hits) != 1 || hits[0].Metadata["v"] != "2" {
		t.Errorf("unexpected hits after replace: %+v", hits)
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", `"hello" OR "world"`},
		{"Hello, hello!", `"hello"`},
		{`a "quoted" AND b`, `"a" OR "quoted" OR "and" OR "b"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
