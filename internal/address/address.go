package address

import (
	"crypto/sha256"
	"fmt"

	"github.com/stellar/go/strkey"

	"griefing/internal/errkind"
)

// Address identifies an account (G...) or a contract-like entity (C...)
// such as an agreement instance, a factory, a template or a token.
type Address string

// Zero is the null identity
const Zero Address = ""

// ErrInvalid is returned for strings that are neither account nor contract strkeys
var ErrInvalid = errkind.New(errkind.InvalidArgument, "invalid address")

// Parse validates s and returns it as an Address
func Parse(s string) (Address, error) {
	a := Address(s)
	if err := a.Validate(); err != nil {
		return Zero, err
	}
	return a, nil
}

// MustParse is Parse for trusted inputs such as test fixtures
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Contract derives a deterministic contract identity from the given seed parts
func Contract(parts ...[]byte) Address {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return Address(strkey.MustEncode(strkey.VersionByteContract, h.Sum(nil)))
}

// IsZero reports whether a is the null identity
func (a Address) IsZero() bool {
	return a == Zero
}

// IsAccount reports whether a is an ed25519 account strkey
func (a Address) IsAccount() bool {
	_, err := strkey.Decode(strkey.VersionByteAccountID, string(a))
	return err == nil
}

// IsContract reports whether a is a contract strkey
func (a Address) IsContract() bool {
	_, err := strkey.Decode(strkey.VersionByteContract, string(a))
	return err == nil
}

// Validate checks that a is a well-formed account or contract strkey
func (a Address) Validate() error {
	if a.IsZero() {
		return fmt.Errorf("%w: empty", ErrInvalid)
	}
	if !a.IsAccount() && !a.IsContract() {
		return fmt.Errorf("%w: %q", ErrInvalid, string(a))
	}
	return nil
}

// Hex returns the raw key bytes of a as hex, or "" if a is not valid
func (a Address) Hex() string {
	for _, vb := range []strkey.VersionByte{strkey.VersionByteAccountID, strkey.VersionByteContract} {
		if raw, err := strkey.Decode(vb, string(a)); err == nil {
			return fmt.Sprintf("%x", raw)
		}
	}
	return ""
}

func (a Address) String() string {
	return string(a)
}
