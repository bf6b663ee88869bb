package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/structgen/backend/internal/model"
	"gorm.io/gorm"
)

func setupGenerationRepo(t *testing.T) GenerationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db error: %v", err)
	}
	if err := db.AutoMigrate(&model.GenerationRecord{}); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	return NewGenerationRepository(db)
}

func TestGenerationRepositoryCreateAndGet(t *testing.T) {
	repo := setupGenerationRepo(t)
	ctx := context.Background()

	record := &model.GenerationRecord{
		RequestID:     "7d1f3c4e-0000-4000-8000-000000000001",
		Prompt:        "2層3スパンのラーメン",
		Mode:          "new",
		StructureType: "frame",
		Source:        "generated",
		Attempts:      1,
		NodeCount:     12,
		MemberCount:   14,
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if record.ID == 0 {
		t.Fatalf("expected ID to be assigned")
	}

	got, err := repo.Get(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.NodeCount != 12 || got.MemberCount != 14 || got.Status != "succeeded" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerationRepositoryListRecent(t *testing.T) {
	repo := setupGenerationRepo(t)
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if err := repo.Create(ctx, &model.GenerationRecord{RequestID: id, Mode: "new"}); err != nil {
			t.Fatalf("Create %s error: %v", id, err)
		}
	}

	records, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RequestID != "c" {
		t.Fatalf("expected newest first, got %s", records[0].RequestID)
	}

	all, err := repo.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent default error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
}
