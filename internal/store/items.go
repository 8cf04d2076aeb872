package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/shramba/internal/model"
)

// ErrNotFound is returned when an operation references a missing item.
var ErrNotFound = errors.New("not found")

const itemColumns = `id, name, category, purchase_date, expiration_date, price, archived_date, archive_reason`

const insertItem = `INSERT INTO items (` + itemColumns + `)
	VALUES (:id, :name, :category, :purchase_date, :expiration_date, :price, :archived_date, :archive_reason)`

// CreateItem validates the input and stores a new active item.
func CreateItem(ctx context.Context, db *sqlx.DB, in model.ItemInput) (*model.Item, error) {
	item, err := in.Item()
	if err != nil {
		return nil, err
	}
	item.ID = uuid.NewString()

	if _, err := db.NamedExecContext(ctx, insertItem, item); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return &item, nil
}

// CreateItems stores a batch of items in one transaction. Nothing is
// stored if any input fails validation.
func CreateItems(ctx context.Context, db *sqlx.DB, inputs []model.ItemInput) ([]model.Item, error) {
	items := make([]model.Item, 0, len(inputs))
	for i, in := range inputs {
		item, err := in.Item()
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				return nil, &model.ValidationError{
					Field:   fmt.Sprintf("[%d].%s", i, verr.Field),
					Message: verr.Message,
				}
			}
			return nil, err
		}
		item.ID = uuid.NewString()
		items = append(items, item)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if _, err := tx.NamedExecContext(ctx, insertItem, item); err != nil {
			return nil, fmt.Errorf("creating item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing items: %w", err)
	}
	return items, nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sqlx.DB, id string) (*model.Item, error) {
	item := &model.Item{}
	err := db.GetContext(ctx, item,
		db.Rebind(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items matching the filter.
func ListItems(ctx context.Context, db *sqlx.DB, filter model.ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if filter.Archived != nil {
		if *filter.Archived {
			query += ` WHERE archived_date IS NOT NULL`
		} else {
			query += ` WHERE archived_date IS NULL`
		}
	}
	query += ` ORDER BY expiration_date, name, id`

	var items []model.Item
	if err := db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// UpdateItem replaces an item's editable fields. Archive state is left
// alone. Concurrent updates are last-writer-wins.
func UpdateItem(ctx context.Context, db *sqlx.DB, id string, in model.ItemInput) (*model.Item, error) {
	fields, err := in.Item()
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		db.Rebind(`UPDATE items SET name = ?, category = ?, purchase_date = ?, expiration_date = ?,
		 price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		fields.Name, fields.Category, fields.PurchaseDate, fields.ExpirationDate, fields.Price, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// DeleteItem permanently removes an item.
func DeleteItem(ctx context.Context, db *sqlx.DB, id string) error {
	result, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return requireRow(result)
}

// MarkItemUsed archives an item as used on now's UTC date. An already
// archived item is archived again, overwriting its previous date and reason.
func MarkItemUsed(ctx context.Context, db *sqlx.DB, id string, now time.Time) (*model.Item, error) {
	item, err := GetItem(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	item.Archive(model.ArchiveUsed, model.DateOf(now))

	result, err := db.ExecContext(ctx,
		db.Rebind(`UPDATE items SET archived_date = ?, archive_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`),
		item.ArchivedDate, item.ArchiveReason, id,
	)
	if err != nil {
		return nil, fmt.Errorf("marking item used: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return item, nil
}

// ClearHistory deletes every archived item and returns how many were removed.
func ClearHistory(ctx context.Context, db *sqlx.DB) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE archived_date IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared items: %w", err)
	}
	return n, nil
}

// Source adapts ListItems to a collaborator interface over db.
type Source struct {
	DB *sqlx.DB
}

// ListItems implements stats.Source.
func (s Source) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error) {
	return ListItems(ctx, s.DB, filter)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
