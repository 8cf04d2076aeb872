package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
)

func milk() model.ItemInput {
	price := decimal.RequireFromString("1.29")
	return model.ItemInput{
		Name:           "Milk",
		Category:       "Dairy",
		PurchaseDate:   "2024-03-01",
		ExpirationDate: "2024-03-10",
		Price:          &price,
	}
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, milk())
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil {
		t.Fatal("expected item to exist")
	}
	if got.Name != "Milk" || got.Category != "Dairy" {
		t.Errorf("unexpected item %+v", got)
	}
	if got.ExpirationDate.String() != "2024-03-10" {
		t.Errorf("expected expiration 2024-03-10, got %s", got.ExpirationDate)
	}
	if got.PurchaseDate == nil || got.PurchaseDate.String() != "2024-03-01" {
		t.Errorf("expected purchase date 2024-03-01, got %v", got.PurchaseDate)
	}
	if got.Price == nil || got.Price.String() != "1.29" {
		t.Errorf("expected price 1.29, got %v", got.Price)
	}
	if got.ArchivedDate != nil || got.ArchiveReason != nil {
		t.Error("new item should not be archived")
	}
}

func TestCreateItemOptionalFields(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, model.ItemInput{Name: "Salt", Category: "Pantry", ExpirationDate: "2030-01-01"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.PurchaseDate != nil || got.Price != nil {
		t.Errorf("expected no purchase date and no price, got %v %v", got.PurchaseDate, got.Price)
	}
}

func TestCreateItemValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateItem(ctx, database, model.ItemInput{Name: "Milk", Category: "Dairy", ExpirationDate: "soon"})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	items, _ := ListItems(ctx, database, model.ItemFilter{})
	if len(items) != 0 {
		t.Errorf("expected nothing stored, got %d items", len(items))
	}
}

func TestGetMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	got, err := GetItem(context.Background(), database, "missing")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestCreateItemsBatch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	items, err := CreateItems(ctx, database, []model.ItemInput{
		milk(),
		{Name: "Bread", Category: "Bakery", ExpirationDate: "2024-03-04"},
	})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if len(items) != 2 || items[0].ID == items[1].ID {
		t.Fatalf("expected two items with distinct ids, got %+v", items)
	}

	all, _ := ListItems(ctx, database, model.ItemFilter{})
	if len(all) != 2 {
		t.Errorf("expected 2 items, got %d", len(all))
	}
}

func TestCreateItemsBatchIsAllOrNothing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateItems(ctx, database, []model.ItemInput{
		milk(),
		{Name: "", Category: "Bakery", ExpirationDate: "2024-03-04"},
	})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "[1].name" {
		t.Errorf("expected field [1].name, got %q", verr.Field)
	}

	all, _ := ListItems(ctx, database, model.ItemFilter{})
	if len(all) != 0 {
		t.Errorf("expected no items stored, got %d", len(all))
	}
}

func TestListItemsByArchiveState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateItem(ctx, database, milk())
	used, _ := CreateItem(ctx, database, model.ItemInput{Name: "Eggs", Category: "Dairy", ExpirationDate: "2024-03-12"})
	MarkItemUsed(ctx, database, used.ID, time.Now())

	yes, no := true, false

	all, _ := ListItems(ctx, database, model.ItemFilter{})
	if len(all) != 2 {
		t.Errorf("expected 2 items, got %d", len(all))
	}

	archived, _ := ListItems(ctx, database, model.ItemFilter{Archived: &yes})
	if len(archived) != 1 || archived[0].ID != used.ID {
		t.Errorf("expected only the used item, got %+v", archived)
	}

	active, _ := ListItems(ctx, database, model.ItemFilter{Archived: &no})
	if len(active) != 1 || active[0].Name != "Milk" {
		t.Errorf("expected only the active item, got %+v", active)
	}
}

func TestUpdateItemKeepsArchiveState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, milk())
	MarkItemUsed(ctx, database, item.ID, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))

	in := milk()
	in.Name = "Oat milk"
	in.PurchaseDate = ""
	in.Price = nil
	updated, err := UpdateItem(ctx, database, item.ID, in)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Name != "Oat milk" {
		t.Errorf("expected name 'Oat milk', got %q", updated.Name)
	}
	if updated.PurchaseDate != nil || updated.Price != nil {
		t.Errorf("expected cleared purchase date and price, got %v %v", updated.PurchaseDate, updated.Price)
	}
	if updated.ArchivedDate == nil || updated.ArchivedDate.String() != "2024-03-05" {
		t.Errorf("expected archive date preserved, got %v", updated.ArchivedDate)
	}
	if !updated.HasReason(model.ArchiveUsed) {
		t.Error("expected archive reason preserved")
	}
}

func TestUpdateMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := UpdateItem(context.Background(), database, "missing", milk())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, milk())
	if err := DeleteItem(ctx, database, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got != nil {
		t.Error("expected item to be gone")
	}

	if err := DeleteItem(ctx, database, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMarkItemUsed(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, milk())

	// Late evening in a western timezone is already the next day in UTC.
	now := time.Date(2024, 3, 5, 22, 0, 0, 0, time.FixedZone("EST", -5*3600))
	used, err := MarkItemUsed(ctx, database, item.ID, now)
	if err != nil {
		t.Fatalf("MarkItemUsed: %v", err)
	}
	if used.ArchivedDate == nil || used.ArchivedDate.String() != "2024-03-06" {
		t.Errorf("expected archive date 2024-03-06, got %v", used.ArchivedDate)
	}
	if !used.HasReason(model.ArchiveUsed) {
		t.Error("expected reason used")
	}

	stored, _ := GetItem(ctx, database, item.ID)
	if stored.ArchivedDate == nil || stored.ArchiveReason == nil {
		t.Fatal("expected both archive fields persisted")
	}

	// No guard against archiving twice: the date is overwritten.
	again, err := MarkItemUsed(ctx, database, item.ID, time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MarkItemUsed again: %v", err)
	}
	if again.ArchivedDate.String() != "2024-03-09" {
		t.Errorf("expected overwritten date 2024-03-09, got %s", again.ArchivedDate)
	}
}

func TestMarkMissingItemUsed(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := MarkItemUsed(context.Background(), database, "missing", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearHistory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	keep, _ := CreateItem(ctx, database, milk())
	for _, name := range []string{"Eggs", "Butter"} {
		item, _ := CreateItem(ctx, database, model.ItemInput{Name: name, Category: "Dairy", ExpirationDate: "2024-03-12"})
		MarkItemUsed(ctx, database, item.ID, time.Now())
	}

	n, err := ClearHistory(ctx, database)
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}

	all, _ := ListItems(ctx, database, model.ItemFilter{})
	if len(all) != 1 || all[0].ID != keep.ID {
		t.Errorf("expected only the active item left, got %+v", all)
	}
}

func TestArchiveInvariantEnforcedBySchema(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, milk())
	_, err := database.ExecContext(ctx, `UPDATE items SET archived_date = '2024-03-05' WHERE id = ?`, item.ID)
	if err == nil {
		t.Error("expected check constraint to reject an archive date without a reason")
	}
}

func TestSourceAdapter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateItem(ctx, database, milk())

	items, err := Source{DB: database}.ListItems(ctx, model.ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}
