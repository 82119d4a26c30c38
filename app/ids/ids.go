// Package ids generates opaque identifiers for listings and comments.
//
// Identifiers are xids: 12 bytes rendered as 20 base32hex characters, with a
// big-endian Unix-seconds timestamp in the first four bytes. Lexicographic order
// therefore follows creation order at one-second granularity; the trailing
// machine, process and counter bytes keep ids unique within a session.
package ids

import (
	"time"

	"github.com/rs/xid"
)

// New returns a fresh identifier.
func New() string {
	return xid.New().String()
}

// Time returns the creation time embedded in id.
func Time(id string) (time.Time, error) {
	parsed, err := xid.FromString(id)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.Time(), nil
}
