// Package snowflake converts the platform's string-encoded 64-bit identifiers
// into a native integer key space for cache indexing.
package snowflake

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidIdentifier is returned when a string is not the canonical decimal
// form of a 64-bit unsigned integer.
var ErrInvalidIdentifier = errors.New("snowflake: invalid identifier")

// Epoch is the platform epoch (2015-01-01T00:00:00Z) in Unix milliseconds.
const Epoch int64 = 1420070400000

// ID is an opaque 64-bit identifier. The zero value is a valid identifier but
// is also used as "unset" for optional fields.
type ID uint64

// Parse decodes the canonical decimal form of an identifier. Empty strings,
// non-digit characters, leading zeros and values that overflow 64 bits are
// rejected with ErrInvalidIdentifier.
func Parse(text string) (ID, error) {
	if text == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidIdentifier)
	}
	if len(text) > 1 && text[0] == '0' {
		return 0, fmt.Errorf("%w: %q has a leading zero", ErrInvalidIdentifier, text)
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, fmt.Errorf("%w: %q contains a non-digit character", ErrInvalidIdentifier, text)
		}
	}

	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidIdentifier, text, err)
	}
	return ID(value), nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(text string) ID {
	id, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical decimal form. Parse(id.String()) == id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Timestamp returns the creation time encoded in the upper 42 bits.
func (id ID) Timestamp() time.Time {
	ms := int64(uint64(id)>>22) + Epoch
	return time.UnixMilli(ms).UTC()
}

// MarshalJSON encodes the identifier as a quoted decimal string.
func (id ID) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, id.String()), nil
}

// UnmarshalJSON decodes a quoted decimal string. A JSON null leaves the
// identifier untouched.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	text, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: expected a quoted string, got %s", ErrInvalidIdentifier, data)
	}
	parsed, err := Parse(text)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
