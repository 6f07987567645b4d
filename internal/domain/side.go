package domain

import "fmt"

// Side is the direction a simulation trades in.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// ParseSide converts a raw config value into a Side.
func ParseSide(raw string) (Side, error) {
	s := Side(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, raw)
	}
	return s, nil
}
