// Package identity supplies the author attached to new listings and comments.
// There is no authentication: every session posts as the same placeholder.
package identity

import "studentmarket/app/models"

const (
	DefaultPosterName    = "Anonymous"
	DefaultCommenterName = "Student"
)

// Provider answers "who is acting right now".
type Provider interface {
	// Poster is stored as the user of a newly published listing.
	Poster() models.User
	// Commenter is stored as the author of a new comment.
	Commenter() string
}

// Fixed always returns the same placeholder identity.
type Fixed struct {
	PosterName    string
	PosterAvatar  string
	CommenterName string
}

// Default is the placeholder identity used when nothing is configured.
func Default() Fixed {
	return Fixed{PosterName: DefaultPosterName, CommenterName: DefaultCommenterName}
}

func (f Fixed) Poster() models.User {
	u := models.User{Name: f.PosterName}
	if u.Name == "" {
		u.Name = DefaultPosterName
	}
	if f.PosterAvatar != "" {
		avatar := f.PosterAvatar
		u.Avatar = &avatar
	}
	return u
}

func (f Fixed) Commenter() string {
	if f.CommenterName == "" {
		return DefaultCommenterName
	}
	return f.CommenterName
}
