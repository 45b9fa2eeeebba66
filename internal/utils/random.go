package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// tempPasswordAlphabet is what kiosk operators type or read aloud.
const tempPasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TempPasswordLength is the length of a temporary password.
const TempPasswordLength = 6

// RandomHex returns a hex string built from n bytes of crypto/rand output.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewTempPassword returns a uniformly random code of TempPasswordLength
// characters drawn from A-Z and 0-9.
func NewTempPassword() (string, error) {
	out := make([]byte, TempPasswordLength)
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}
