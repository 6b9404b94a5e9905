package identity

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// tokenSize is the entropy of a bearer token in bytes (256 bits).
// The token is the whole credential so it must come from a
// cryptographically strong source; a counter or timestamp-derived value
// would be guessable.
const tokenSize = 32

func generateToken() (string, error) {
	b := make([]byte, tokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
