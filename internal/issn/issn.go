// =============================================================================
// Journal Access Sync - ISSN Check Digit
// =============================================================================
//
// An ISSN is written NNNN-NNNC: seven digits split by a hyphen after the
// fourth, followed by a check character C (a digit or 'X').
//
// CHECK DIGIT ALGORITHM:
//   S = d1*8 + d2*7 + d3*6 + d4*5 + d5*4 + d6*3 + d7*2
//   m = S mod 11
//   expected = 0 if m == 0, else 11 - m
//   expected == 10 is written as 'X'
//
// The check character is compared as a string, so a lowercase 'x' does not
// match. No normalization (trimming, case folding) is performed here.
//
// =============================================================================

package issn

import (
	"fmt"

	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

// Length is the length of an ISSN in canonical form.
const Length = 9

// hyphenIndex is the position of the separator in canonical form.
const hyphenIndex = 4

// digits extracts the seven weighted digits of an ISSN.
// It returns a MalformedInputError when the value is not in NNNN-NNNC form.
func digits(value string) ([7]int, error) {
	var d [7]int

	if len(value) != Length {
		return d, pkgerrors.NewMalformedInputError(value,
			fmt.Sprintf("expected %d characters, got %d", Length, len(value)))
	}
	if value[hyphenIndex] != '-' {
		return d, pkgerrors.NewMalformedInputError(value, "expected '-' at position 5")
	}

	n := 0
	for i := 0; i < Length-1; i++ {
		if i == hyphenIndex {
			continue
		}
		c := value[i]
		if c < '0' || c > '9' {
			return d, pkgerrors.NewMalformedInputError(value,
				fmt.Sprintf("non-digit %q at position %d", c, i+1))
		}
		d[n] = int(c - '0')
		n++
	}

	return d, nil
}

// CheckDigit returns the check character an ISSN must end with, computed
// from its first seven digits. The final character of value is ignored.
func CheckDigit(value string) (byte, error) {
	d, err := digits(value)
	if err != nil {
		return 0, err
	}

	sum := 0
	for i, digit := range d {
		sum += digit * (8 - i)
	}

	m := sum % 11
	if m == 0 {
		return '0', nil
	}
	expected := 11 - m
	if expected == 10 {
		return 'X', nil
	}
	return byte('0' + expected), nil
}

// IsValidCheckDigit reports whether the last character of value equals the
// check character computed from its first seven digits.
//
// Malformed input is reported as an error wrapping errors.ErrMalformedInput
// rather than as false, so callers can tell a bad checksum from a value that
// is not an ISSN at all.
func IsValidCheckDigit(value string) (bool, error) {
	expected, err := CheckDigit(value)
	if err != nil {
		return false, err
	}
	return value[Length-1] == expected, nil
}
