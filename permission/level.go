package permission

import (
	"errors"
	"fmt"
)

// ErrInvalidLevel is returned when a value outside N, R, W, A is parsed.
var ErrInvalidLevel = errors.New("fieldgate: invalid permission level")

// Level is a field permission level. The zero value is not a valid level;
// use DefaultLevel for fields that have no stored entry.
//
// Levels are totally ordered: Hidden < Read < Write < Admin.
type Level uint8

const (
	levelUnset Level = iota

	// Hidden means the field is not visible (wire form "N").
	Hidden
	// Read means the field is visible but not editable (wire form "R").
	Read
	// Write means the field is visible and editable (wire form "W").
	Write
	// Admin grants Write plus the module's elevated actions (wire form "A").
	Admin
)

// DefaultLevel is the level of any (module, field, role) triple without a
// stored entry.
const DefaultLevel = Read

var levelCodes = [...]string{
	Hidden: "N",
	Read:   "R",
	Write:  "W",
	Admin:  "A",
}

// Levels lists every valid level in ascending order.
func Levels() []Level { return []Level{Hidden, Read, Write, Admin} }

// ParseLevel parses a wire code. Only the exact single characters N, R, W and A
// are accepted.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "N":
		return Hidden, nil
	case "R":
		return Read, nil
	case "W":
		return Write, nil
	case "A":
		return Admin, nil
	default:
		return levelUnset, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// MustParseLevel is like ParseLevel but panics on error.
func MustParseLevel(s string) Level {
	l, err := ParseLevel(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Valid reports whether l is one of the four levels.
func (l Level) Valid() bool { return l >= Hidden && l <= Admin }

// String returns the wire code, or "" for an invalid level.
func (l Level) String() string {
	if !l.Valid() {
		return ""
	}
	return levelCodes[l]
}

// CanRead reports whether the field is visible.
func (l Level) CanRead() bool { return l.Valid() && l >= Read }

// CanWrite reports whether the field accepts edits.
func (l Level) CanWrite() bool { return l.Valid() && l >= Write }

// CanAdminister reports whether the module's elevated actions are allowed.
func (l Level) CanAdminister() bool { return l == Admin }

// AtLeast reports whether l grants at least min.
func (l Level) AtLeast(minLevel Level) bool { return l.Valid() && l >= minLevel }

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, uint8(l))
	}
	return []byte(levelCodes[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(data []byte) error {
	parsed, err := ParseLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
