package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeSpace covers [100000, 999999]: always six printable digits,
// no leading-zero collapse.
var codeSpace = big.NewInt(900000)

// NewEntryCode returns a uniformly random 6-digit one-time code.
func NewEntryCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// PadCode renders a stored code as the fixed-length, zero-padded 6-character
// string used for comparison during verification.
func PadCode(code string) string {
	return fmt.Sprintf("%06s", code)
}
