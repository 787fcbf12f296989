package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Side represents the direction of a trade.
type Side int

const (
	// SideUnknown is the zero value and never valid.
	SideUnknown Side = iota
	// SideBuy acquires the base asset.
	SideBuy
	// SideSell disposes of the base asset.
	SideSell
)

// side string constants to avoid magic strings
const (
	sideStringBuy  = "buy"
	sideStringSell = "sell"
)

// ParseSide converts exchange side strings (BUY, sell, ...) into Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case sideStringBuy:
		return SideBuy, nil
	case sideStringSell:
		return SideSell, nil
	default:
		return SideUnknown, errors.Errorf("unknown trade side %q", s)
	}
}

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// String returns the string representation of the side
func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideStringBuy
	case SideSell:
		return sideStringSell
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, errors.Errorf("cannot marshal side %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
