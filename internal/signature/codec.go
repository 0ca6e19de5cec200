// Package signature canonicalizes gateway parameter sets and signs them with
// a shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Codec signs canonical parameter strings with HMAC. A Codec is immutable
// once built and safe for concurrent use.
type Codec struct {
	secret   []byte
	hash     func() hash.Hash
	encoding Encoding
}

func NewSHA512(secret string, enc Encoding) *Codec {
	return &Codec{secret: []byte(secret), hash: sha512.New, encoding: enc}
}

func NewSHA256(secret string, enc Encoding) *Codec {
	return &Codec{secret: []byte(secret), hash: sha256.New, encoding: enc}
}

// Canonical renders p the way this codec signs it.
func (c *Codec) Canonical(p Params) string {
	return p.Canonical(c.encoding)
}

// Sign returns the lowercase hex HMAC of the canonical form of p.
func (c *Codec) Sign(p Params) string {
	return hex.EncodeToString(c.mac(c.Canonical(p)))
}

// SignString signs an already canonical string.
func (c *Codec) SignString(data string) string {
	return hex.EncodeToString(c.mac(data))
}

// Verify recomputes the signature of p and compares it with sig in constant
// time. p must not contain the signature field itself.
func (c *Codec) Verify(p Params, sig string) error {
	return c.VerifyString(c.Canonical(p), sig)
}

func (c *Codec) VerifyString(data, sig string) error {
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) == 0 {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, c.mac(data)) {
		return ErrInvalidSignature
	}
	return nil
}

func (c *Codec) mac(data string) []byte {
	m := hmac.New(c.hash, c.secret)
	_, _ = m.Write([]byte(data))
	return m.Sum(nil)
}
