package models

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Validate checks a stored listing against every model invariant.
func (l *Listing) Validate() error {
	if err := validate.Struct(l); err != nil {
		return toAppError(err)
	}
	return nil
}

// NumericPrice returns the price used for sorting: absent or unparsable prices count as 0.
func (l *Listing) NumericPrice() float64 {
	if l.Price == nil {
		return 0
	}
	f, ok := ParsePrice(*l.Price)
	if !ok {
		return 0
	}
	return f
}

// Cover returns the first image, if any.
func (l *Listing) Cover() (string, bool) {
	if len(l.Images) == 0 {
		return "", false
	}
	return l.Images[0], true
}

// WithComment returns a copy of the listing with c appended. The receiver is left untouched.
func (l *Listing) WithComment(c Comment) (*Listing, error) {
	if strings.TrimSpace(c.Text) == "" {
		return nil, errors.New("comment text cannot be empty")
	}
	if c.CreatedAt.IsZero() {
		return nil, errors.New("created_at cannot be zero")
	}

	updated := *l
	updated.Comments = append(slices.Clone(l.Comments), c)
	return &updated, nil
}

// Normalize trims the free-text fields and drops the price of looking listings.
func (in *ListingInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Type = ListingType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Price = strings.TrimSpace(in.Price)
	if in.Type == Looking {
		in.Price = ""
	}
}

// Validate normalizes and checks the input of a publish action.
func (in *ListingInput) Validate() error {
	in.Normalize()
	if err := validate.Struct(in); err != nil {
		return toAppError(err)
	}
	return nil
}

// Build turns a validated input into a listing owned by user.
func (in *ListingInput) Build(id string, createdAt time.Time, user User) *Listing {
	l := &Listing{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Images:      slices.Clone(in.Images),
		Comments:    []Comment{},
		CreatedAt:   createdAt,
		User:        user,
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	if in.Type == Selling {
		price := in.Price
		l.Price = &price
	}
	return l
}
