// Package signer builds APNs provider authentication tokens.
//
// A provider token is a JWT signed with ES256: a header naming the key, a claim
// set naming the team and the issue time, and an ECDSA P-256/SHA-256 signature
// over the first two segments in the raw r||s form.
//
// APNs rejects tokens whose issue time is older than one hour, and it throttles
// providers that mint new tokens too often, so tokens are normally obtained
// through a Provider, which signs once and reuses the result.
package signer

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/codec"
)

// Algorithm is the JWS algorithm APNs accepts.
const Algorithm = "ES256"

// Encoding selects the base64 alphabet used for all three token segments.
type Encoding int

const (
	// URLEncoding is base64url without padding, as defined for JWS.
	URLEncoding Encoding = iota
	// StdEncoding is the standard padded alphabet. Some older providers emit it
	// and it is kept for byte-level compatibility with them.
	StdEncoding
)

// ParseEncoding maps "url" or "std" to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "url", "rawurl":
		return URLEncoding, nil
	case "std", "standard":
		return StdEncoding, nil
	}
	return URLEncoding, fmt.Errorf("unknown token encoding %q", s)
}

func (e Encoding) String() string {
	if e == StdEncoding {
		return "std"
	}
	return "url"
}

// Base64 returns the encoding used for token segments.
func (e Encoding) Base64() *base64.Encoding {
	if e == StdEncoding {
		return base64.StdEncoding
	}
	return base64.RawURLEncoding
}

type header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

type claims struct {
	Iss string `json:"iss"`
	Iat int64  `json:"iat"`
}

// Signer produces signed provider tokens. It is stateless apart from its
// configuration and safe for concurrent use.
type Signer struct {
	method   jwt.SigningMethod
	encoding Encoding
	now      func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithSigningMethod replaces the ES256 signing primitive.
func WithSigningMethod(m jwt.SigningMethod) Option {
	return func(s *Signer) { s.method = m }
}

// WithEncoding selects the segment encoding.
func WithEncoding(e Encoding) Option {
	return func(s *Signer) { s.encoding = e }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// New returns a Signer using ES256 and base64url segments.
func New(opts ...Option) *Signer {
	s := &Signer{
		method:   jwt.SigningMethodES256,
		encoding: URLEncoding,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encoding reports the segment encoding.
func (s *Signer) Encoding() Encoding {
	return s.encoding
}

// Sign returns a token issued at the current time.
func (s *Signer) Sign(cred Credential) (string, error) {
	return s.SignAt(cred, s.now())
}

// SignAt returns a token whose iat claim is issuedAt truncated to seconds.
func (s *Signer) SignAt(cred Credential, issuedAt time.Time) (string, error) {
	key, err := ParsePrivateKey(cred.PrivateKey)
	if err != nil {
		if ce, ok := err.(*CredentialError); ok {
			ce.KeyID = cred.KeyID
		}
		return "", err
	}

	enc := s.encoding.Base64()

	h, err := codec.Marshal(header{Alg: Algorithm, Kid: cred.KeyID})
	if err != nil {
		return "", fmt.Errorf("encoding token header: %w", err)
	}
	c, err := codec.Marshal(claims{Iss: cred.TeamID, Iat: issuedAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("encoding token claims: %w", err)
	}

	signingInput := enc.EncodeToString(h) + "." + enc.EncodeToString(c)
	sig, err := s.method.Sign(signingInput, key)
	if err != nil {
		return "", &CredentialError{KeyID: cred.KeyID, Err: err}
	}
	return signingInput + "." + enc.EncodeToString(sig), nil
}
