// Package stats turns item records into dashboard statistics: a summary of
// the whole collection, a gap-free series of archive events bucketed by
// day, week or month, and the categories losing the most items to
// expiration.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/model"
)

// UnknownCategory labels items stored without a category.
const UnknownCategory = "Unknown"

// TopCategories caps the category rollup.
const TopCategories = 10

// ExpiringWindowDays is how far ahead the summary looks for expiring items.
const ExpiringWindowDays = 7

// Query selects the series range. Both bounds are inclusive.
type Query struct {
	From        model.Date
	To          model.Date
	Granularity string
}

// Summary counts lifecycle states over the whole collection.
type Summary struct {
	TotalProducts  int `json:"totalProducts"`
	ExpiredCount   int `json:"expiredCount"`
	Expiring7Days  int `json:"expiring7Days"`
	ConsumedCount  int `json:"consumedCount"`
	DiscardedCount int `json:"discardedCount"`
}

// Point is one bucket of the series. Date is the bucket key.
type Point struct {
	Date          model.Date      `json:"date"`
	ExpiredCount  int             `json:"expiredCount"`
	Cost          decimal.Decimal `json:"cost"`
	ConsumedCount int             `json:"consumedCount"`
}

// CategoryStat counts expired items in one category.
type CategoryStat struct {
	Category     string `json:"category"`
	Count        int    `json:"count"`
	ExpiredCount int    `json:"expiredCount"`
}

// Response is the full statistics payload.
type Response struct {
	UserID      *string        `json:"userId"`
	From        model.Date     `json:"from"`
	To          model.Date     `json:"to"`
	Granularity string         `json:"granularity"`
	Summary     Summary        `json:"summary"`
	Series      []Point        `json:"series"`
	ByCategory  []CategoryStat `json:"byCategory"`
}

// Source fetches item snapshots. Ordering of the result is not assumed.
type Source interface {
	ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, filter model.ItemFilter) ([]model.Item, error)

// ListItems calls f.
func (f SourceFunc) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error) {
	return f(ctx, filter)
}

// Engine computes statistics from a Source. Each call works on a fresh
// snapshot; nothing is cached between calls.
type Engine struct {
	Source  Source
	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Stats fetches every item and computes the response for the given range.
// userID is echoed back and never used to filter.
func (e *Engine) Stats(ctx context.Context, userID string, from, to time.Time, granularity string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := e.Source.ListItems(ctx, model.ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("fetching items: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	resp := Compute(items, Query{
		From:        model.DateOf(from),
		To:          model.DateOf(to),
		Granularity: granularity,
	}, model.DateOf(now()), userID)

	e.Metrics.ObserveStats(string(ParseGranularity(granularity)), len(resp.Series))
	return resp, nil
}

// Compute builds the response from an item snapshot. It is pure: today is
// supplied by the caller.
func Compute(items []model.Item, q Query, today model.Date, userID string) *Response {
	granularity := q.Granularity
	if granularity == "" {
		granularity = string(Month)
	}

	resp := &Response{
		From:        q.From,
		To:          q.To,
		Granularity: granularity,
		Summary:     Summarize(items, today),
		Series:      Series(items, q.From, q.To, ParseGranularity(q.Granularity)),
		ByCategory:  ByCategory(items, TopCategories),
	}
	if userID != "" {
		resp.UserID = &userID
	}
	return resp
}

// Summarize counts over every item regardless of range.
func Summarize(items []model.Item, today model.Date) Summary {
	s := Summary{TotalProducts: len(items)}
	horizon := today.AddDays(ExpiringWindowDays)

	for _, item := range items {
		switch {
		case item.HasReason(model.ArchiveExpired):
			s.ExpiredCount++
		case item.HasReason(model.ArchiveUsed):
			s.ConsumedCount++
		}
		if !model.IsArchived(item) &&
			!item.ExpirationDate.Before(today) &&
			!item.ExpirationDate.After(horizon) {
			s.Expiring7Days++
		}
	}

	// Nothing produces ArchiveDiscarded yet, so the count stays zero.
	s.DiscardedCount = 0
	return s
}

// Series groups items archived within [from, to] into buckets and fills
// the buckets without events with zeros.
func Series(items []model.Item, from, to model.Date, g Granularity) []Point {
	grouped := make(map[model.Date]*Point)

	for _, item := range items {
		if item.ArchivedDate == nil {
			continue
		}
		archived := *item.ArchivedDate
		if archived.Before(from) || archived.After(to) {
			continue
		}

		key := g.Key(archived)
		p, ok := grouped[key]
		if !ok {
			p = &Point{Date: key, Cost: decimal.Zero}
			grouped[key] = p
		}
		switch {
		case item.HasReason(model.ArchiveExpired):
			p.ExpiredCount++
		case item.HasReason(model.ArchiveUsed):
			p.ConsumedCount++
		}
		if item.Price != nil {
			p.Cost = p.Cost.Add(*item.Price)
		}
	}

	keys := Buckets(from, to, g.Key, g.Next)
	series := make([]Point, 0, len(keys))
	for _, key := range keys {
		if p, ok := grouped[key]; ok {
			p.Cost = p.Cost.Round(2)
			series = append(series, *p)
			continue
		}
		series = append(series, Point{Date: key, Cost: decimal.Zero})
	}
	return series
}

// ByCategory counts expired items per category, largest first. Ties keep
// the order in which categories were first seen.
func ByCategory(items []model.Item, limit int) []CategoryStat {
	index := make(map[string]int)
	var stats []CategoryStat

	for _, item := range items {
		if !item.HasReason(model.ArchiveExpired) {
			continue
		}
		category := item.Category
		if category == "" {
			category = UnknownCategory
		}
		i, ok := index[category]
		if !ok {
			i = len(stats)
			index[category] = i
			stats = append(stats, CategoryStat{Category: category})
		}
		stats[i].Count++
		stats[i].ExpiredCount++
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	if len(stats) > limit {
		stats = stats[:limit]
	}
	if stats == nil {
		stats = []CategoryStat{}
	}
	return stats
}
