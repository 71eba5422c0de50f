package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcliao/agent-context/internal/model"
)

func TestUpsertProcedurePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.UpsertProcedure(ctx, model.ProcedureDraft{
		UserID: "u1", Name: "deploy", Steps: []string{"build", "ship"}, Description: "release flow",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	second, err := s.UpsertProcedure(ctx, model.ProcedureDraft{
		UserID: "u1", Name: "deploy", Steps: []string{"test", "build", "ship"},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same id, got %s and %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(*first.CreatedAt) {
		t.Errorf("expected created_at preserved, got %v and %v", first.CreatedAt, second.CreatedAt)
	}

	got, err := s.GetProcedure(ctx, "u1", "deploy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Steps) != 3 || got.Steps[0] != "test" {
		t.Errorf("expected replaced steps, got %v", got.Steps)
	}
	if got.Description != "" {
		t.Errorf("expected description replaced with empty, got %q", got.Description)
	}
	if !got.UpdatedAt.After(*got.CreatedAt) {
		t.Errorf("expected updated_at after created_at: %v vs %v", got.UpdatedAt, got.CreatedAt)
	}

	list, _ := s.ListProcedures(ctx, ListProceduresParams{UserID: "u1", IncludeDocs: true})
	if len(list) != 1 {
		t.Errorf("expected 1 procedure after two upserts, got %d", len(list))
	}
}

func TestGetProcedureNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProcedure(context.Background(), "u1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertProcedureRequiresName(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertProcedure(context.Background(), model.ProcedureDraft{UserID: "u1"}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestListProceduresOrderAndLightweight(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertProcedure(ctx, model.ProcedureDraft{UserID: "u1", Name: "a", Steps: []string{"1"}})
	s.UpsertProcedure(ctx, model.ProcedureDraft{UserID: "u1", Name: "b", Steps: []string{"1"}})
	time.Sleep(2 * time.Millisecond)
	s.UpsertProcedure(ctx, model.ProcedureDraft{UserID: "u1", Name: "a", Steps: []string{"2"}})
	s.UpsertProcedure(ctx, model.ProcedureDraft{UserID: "u2", Name: "c"})

	light, err := s.ListProcedures(ctx, ListProceduresParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(light) != 2 {
		t.Fatalf("expected 2, got %d", len(light))
	}
	if light[0].Name != "a" {
		t.Errorf("expected most recently updated first, got %q", light[0].Name)
	}
	if light[0].ID == "" || light[0].Steps != nil || light[0].CreatedAt != nil {
		t.Errorf("expected only id and name, got %+v", light[0])
	}

	limited, _ := s.ListProcedures(ctx, ListProceduresParams{UserID: "u1", Limit: 1, IncludeDocs: true})
	if len(limited) != 1 || limited[0].Steps[0] != "2" {
		t.Errorf("unexpected limited list: %+v", limited)
	}
}
