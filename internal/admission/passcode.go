// Package admission implements the passcode/token/host-election protocol
// that gates entry into a running server: generate a per-game passcode,
// verify a client's guess with a bounded number of attempts, issue a
// short-lived connect token on success, and decide host/capacity/in-progress
// admission outcomes.
package admission

import (
	"crypto/rand"
	"fmt"
)

// Passcode is the per-game numeric code a client must submit before the
// transport will issue it a connect token.
type Passcode struct {
	Digits []byte
	String string
}

// GeneratePasscode produces a random numeric passcode of the given length
// using a cryptographically secure source, since the passcode gates network
// admission.
func GeneratePasscode(length int) (Passcode, error) {
	digits := make([]byte, length)
	buf := make([]byte, length)
	if length > 0 {
		if _, err := rand.Read(buf); err != nil {
			return Passcode{}, fmt.Errorf("admission: generate passcode: %w", err)
		}
	}
	str := make([]byte, length)
	for i, b := range buf {
		d := b % 10
		digits[i] = d
		str[i] = '0' + d
	}
	return Passcode{Digits: digits, String: string(str)}, nil
}

// PasscodeFromString parses a submitted guess into digit bytes, rejecting
// anything that is not purely ASCII digits.
func PasscodeFromString(s string) (Passcode, bool) {
	digits := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return Passcode{}, false
		}
		digits[i] = c - '0'
	}
	return Passcode{Digits: digits, String: s}, true
}

// Equal reports whether two passcodes have identical digit sequences.
func (p Passcode) Equal(other Passcode) bool {
	if len(p.Digits) != len(other.Digits) {
		return false
	}
	for i := range p.Digits {
		if p.Digits[i] != other.Digits[i] {
			return false
		}
	}
	return true
}
