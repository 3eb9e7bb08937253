package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strconv"
)

const contextTokenBytes = 32

// NewOTP returns a uniformly random numeric code with the given digit
// count and no leading zero, e.g. 100000-999999 inclusive for 6 digits.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	span := big.NewInt(9 * low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(low+n.Int64(), 10), nil
}

// NewContextToken returns an opaque URL-safe random token for resuming a
// verification flow without re-transmitting the email address.
func NewContextToken() (string, error) {
	raw := make([]byte, contextTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
