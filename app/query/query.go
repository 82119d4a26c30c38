// Package query derives the ordered result list shown to the user from the
// listing collection and the current filter. Apply is pure: it never mutates
// its input and returns the same output for the same arguments.
package query

import (
	"fmt"
	"sort"
	"strings"

	"studentmarket/app/apperror"
	"studentmarket/app/models"
)

// Category narrows results by listing type.
type Category string

const (
	CategoryAll     Category = "all"
	CategorySelling Category = Category(models.Selling)
	CategoryLooking Category = Category(models.Looking)
)

// SortBy selects the result order.
type SortBy string

const (
	SortNewest    SortBy = "newest"
	SortOldest    SortBy = "oldest"
	SortPriceAsc  SortBy = "price-asc"
	SortPriceDesc SortBy = "price-desc"
)

// Filter is the explicit filter state. The zero value matches everything, newest first.
type Filter struct {
	Text     string   `json:"query"`
	Category Category `json:"type"`
	SortBy   SortBy   `json:"sortBy"`
}

// ParseCategory validates an externally supplied category. Empty means all.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CategoryAll, nil
	case CategoryAll, CategorySelling, CategoryLooking:
		return c, nil
	default:
		return "", apperror.ValidationFailed("category",
			fmt.Sprintf("category must be one of: %s, %s, %s", CategoryAll, CategorySelling, CategoryLooking))
	}
}

// ParseSort validates an externally supplied sort key. Empty means newest.
func ParseSort(s string) (SortBy, error) {
	switch sb := SortBy(strings.ToLower(strings.TrimSpace(s))); sb {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortPriceAsc, SortPriceDesc:
		return sb, nil
	default:
		return "", apperror.ValidationFailed("sort",
			fmt.Sprintf("sort must be one of: %s, %s, %s, %s", SortNewest, SortOldest, SortPriceAsc, SortPriceDesc))
	}
}

// Apply filters by category, then by text, then stable-sorts by f.SortBy.
// Ties keep their relative input order.
func Apply(listings []*models.Listing, f Filter) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))

	needle := strings.ToLower(f.Text)
	for _, l := range listings {
		if f.Category != "" && f.Category != CategoryAll && Category(l.Type) != f.Category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Description), needle) {
			continue
		}
		out = append(out, l)
	}

	if less := lessFunc(out, f.SortBy); less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

func lessFunc(out []*models.Listing, sortBy SortBy) func(i, j int) bool {
	switch sortBy {
	case SortNewest, "":
		return func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) }
	case SortOldest:
		return func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) }
	case SortPriceAsc:
		return func(i, j int) bool { return out[i].NumericPrice() < out[j].NumericPrice() }
	case SortPriceDesc:
		return func(i, j int) bool { return out[i].NumericPrice() > out[j].NumericPrice() }
	default:
		// Unknown keys leave the filtered order as is.
		return nil
	}
}
