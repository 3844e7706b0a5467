package gpib

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinPrimary   = 0
	MaxPrimary   = 30
	MinSecondary = 96
	MaxSecondary = 126
)

// ErrInvalidAddress indicates a primary or secondary address out of range.
var ErrInvalidAddress = errors.New("gpib: invalid address")

// Address is a GPIB device address. Secondary is 0 when the device has no
// secondary address, otherwise in [96, 126].
type Address struct {
	Primary   int
	Secondary int
}

// Primary returns an Address without secondary address.
func Primary(pad int) Address {
	return Address{Primary: pad}
}

// HasSecondary reports whether the address carries a secondary address.
func (a Address) HasSecondary() bool {
	return a.Secondary != 0
}

// Validate checks both address ranges.
func (a Address) Validate() error {
	if a.Primary < MinPrimary || a.Primary > MaxPrimary {
		return fmt.Errorf("%w: primary %d out of range [%d, %d]", ErrInvalidAddress, a.Primary, MinPrimary, MaxPrimary)
	}
	if a.HasSecondary() && (a.Secondary < MinSecondary || a.Secondary > MaxSecondary) {
		return fmt.Errorf("%w: secondary %d out of range [%d, %d]", ErrInvalidAddress, a.Secondary, MinSecondary, MaxSecondary)
	}

	return nil
}

// String formats the address the way bus controllers print it: "5" or "5 96".
func (a Address) String() string {
	if a.HasSecondary() {
		return fmt.Sprintf("%d %d", a.Primary, a.Secondary)
	}

	return strconv.Itoa(a.Primary)
}

// ParseAddress parses "5" or "5 96" and validates the result.
func ParseAddress(s string) (Address, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var addr Address
	var err error
	if addr.Primary, err = strconv.Atoi(fields[0]); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if len(fields) == 2 {
		if addr.Secondary, err = strconv.Atoi(fields[1]); err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
	}

	if err := addr.Validate(); err != nil {
		return Address{}, err
	}

	return addr, nil
}
