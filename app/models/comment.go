package models

import "time"

// NewComment builds a comment. The caller supplies id and time.
func NewComment(id, text, author string, createdAt time.Time) Comment {
	return Comment{
		ID:        id,
		Text:      text,
		Author:    author,
		CreatedAt: createdAt,
	}
}

// Validate checks if the comment meets all validation requirements
func (c *Comment) Validate() error {
	if err := validate.Struct(c); err != nil {
		return toAppError(err)
	}
	return nil
}
