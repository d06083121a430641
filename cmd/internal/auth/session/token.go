package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"codegate/cmd/security/token"
)

func newBearerToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// Hex per the wire contract: tokens travel in URLs and headers.
	plain = hex.EncodeToString(b)

	hashHex = token.HashBearerTokenHex(plain) // 64 hex chars

	return plain, hashHex, nil
}

func newSessionID(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// URL-safe, no padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
