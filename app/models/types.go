package models

import "time"

// MaxImages is the most images a single listing may carry.
const MaxImages = 3

// ListingType tells whether a listing offers an item or asks for one.
type ListingType string

const (
	Selling ListingType = "selling"
	Looking ListingType = "looking"
)

// User is the denormalized author shown on a listing.
type User struct {
	Name   string  `json:"name" validate:"required"`
	Avatar *string `json:"avatar"`
}

// Listing represents a single marketplace post.
type Listing struct {
	ID          string      `json:"id" validate:"required"`
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description" validate:"required"`
	Type        ListingType `json:"type" validate:"required,oneof=selling looking"`
	Price       *string     `json:"price" validate:"omitnil,price"`
	Images      []string    `json:"images" validate:"max=3,dive,datauri"`
	Comments    []Comment   `json:"comments" validate:"dive"`
	CreatedAt   time.Time   `json:"createdAt" validate:"required"`
	User        User        `json:"user"`
}

// Comment represents a message in a listing's discussion.
type Comment struct {
	ID        string    `json:"id" validate:"required"`
	Text      string    `json:"text" validate:"required"`
	Author    string    `json:"author" validate:"required"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

// ListingInput is what a publish action supplies.
type ListingInput struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description" validate:"required"`
	Type        ListingType `json:"type" validate:"required,oneof=selling looking"`
	Price       string      `json:"price" validate:"required_if=Type selling,omitempty,price"`
	Images      []string    `json:"images" validate:"max=3,dive,datauri"`
}
