package model

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ArchiveReason records why an item left active circulation.
type ArchiveReason string

// Archive reasons. Only ArchiveUsed is produced by the lifecycle actions;
// the others are representable but never set automatically.
const (
	ArchiveExpired   ArchiveReason = "expired"
	ArchiveUsed      ArchiveReason = "used"
	ArchiveDiscarded ArchiveReason = "discarded"
)

// Field limits.
const (
	MaxNameLength     = 200
	MaxCategoryLength = 100
)

// Item is a tracked perishable unit.
type Item struct {
	ID             string           `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	Category       string           `json:"category" db:"category"`
	PurchaseDate   *Date            `json:"purchaseDate" db:"purchase_date"`
	ExpirationDate Date             `json:"expirationDate" db:"expiration_date"`
	Price          *decimal.Decimal `json:"price" db:"price"`
	ArchivedDate   *Date            `json:"archivedDate" db:"archived_date"`
	ArchiveReason  *ArchiveReason   `json:"archiveReason" db:"archive_reason"`
}

// Archive takes the item out of active circulation. It overwrites any
// earlier archive date and reason.
func (i *Item) Archive(reason ArchiveReason, on Date) {
	i.ArchivedDate = &on
	i.ArchiveReason = &reason
}

// HasReason reports whether the item is archived with the given reason.
func (i Item) HasReason(reason ArchiveReason) bool {
	return i.ArchiveReason != nil && *i.ArchiveReason == reason
}

// IsArchived reports whether the item has left active circulation.
func IsArchived(item Item) bool {
	return item.ArchivedDate != nil
}

// IsExpired reports whether today is past the expiration date. An item
// expiring today is not expired yet.
func IsExpired(item Item, today Date) bool {
	return today.After(item.ExpirationDate)
}

// DaysUntilExpiration returns the days left until the expiration date,
// negative once it has passed.
func DaysUntilExpiration(item Item, today Date) int {
	return today.DaysUntil(item.ExpirationDate)
}

// ItemFilter narrows item listings. A nil Archived matches every item.
type ItemFilter struct {
	Archived *bool
}

// Matches reports whether item passes the filter.
func (f ItemFilter) Matches(item Item) bool {
	return f.Archived == nil || *f.Archived == IsArchived(item)
}

// ItemInput carries the editable fields of an item as received from a
// client. Dates are still strings so that parse failures surface as
// validation errors.
type ItemInput struct {
	Name           string           `json:"name"`
	Category       string           `json:"category"`
	PurchaseDate   string           `json:"purchaseDate,omitempty"`
	ExpirationDate string           `json:"expirationDate"`
	Price          *decimal.Decimal `json:"price,omitempty"`
}

// Item validates the input and returns an unarchived item without an ID.
func (in ItemInput) Item() (Item, error) {
	item := Item{
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
	}

	if err := validateText("name", item.Name, MaxNameLength); err != nil {
		return Item{}, err
	}
	if err := validateText("category", item.Category, MaxCategoryLength); err != nil {
		return Item{}, err
	}

	if strings.TrimSpace(in.ExpirationDate) == "" {
		return Item{}, &ValidationError{Field: "expirationDate", Message: "required"}
	}
	exp, err := ParseDate(in.ExpirationDate)
	if err != nil {
		return Item{}, &ValidationError{Field: "expirationDate", Message: err.Error()}
	}
	item.ExpirationDate = exp

	if strings.TrimSpace(in.PurchaseDate) != "" {
		purchased, err := ParseDate(in.PurchaseDate)
		if err != nil {
			return Item{}, &ValidationError{Field: "purchaseDate", Message: err.Error()}
		}
		item.PurchaseDate = &purchased
	}

	if in.Price != nil {
		if in.Price.IsNegative() {
			return Item{}, &ValidationError{Field: "price", Message: "must not be negative"}
		}
		price := in.Price.Round(2)
		item.Price = &price
	}

	return item, nil
}

func validateText(field, value string, max int) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "required"}
	}
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{Field: field, Message: "too long"}
	}
	return nil
}

// ValidationError describes client input that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
