package signer

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	apnstoken "github.com/sideshow/apns2/token"
)

// Errors wrapped by CredentialError.
var (
	ErrEmptyPrivateKey  = errors.New("private key is empty")
	ErrNotECDSA         = errors.New("private key is not an ECDSA key")
	ErrUnsupportedCurve = errors.New("private key is not on curve P-256")
)

// Credential is the provider identity used to sign APNs tokens.
// Your Key ID and Team ID values can be obtained from your developer account.
type Credential struct {
	// PrivateKey is the PKCS8 EC private key from the .p8 file, either as
	// base64 text (the body of the file) or as the full PEM block.
	PrivateKey string
	// KeyID is the 10 character identifier of the signing key.
	KeyID string
	// TeamID is the 10 character identifier of the developer team (issuer).
	TeamID string
}

// CredentialError reports private key material that cannot be used for ES256.
type CredentialError struct {
	KeyID string
	Err   error
}

func (e *CredentialError) Error() string {
	if e.KeyID == "" {
		return fmt.Sprintf("invalid provider credential: %v", e.Err)
	}
	return fmt.Sprintf("invalid provider credential (key %s): %v", e.KeyID, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// ParsePrivateKey decodes a P-256 private key from base64 PKCS8 text or a PEM
// encoded .p8 file.
func ParsePrivateKey(text string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &CredentialError{Err: ErrEmptyPrivateKey}
	}

	var key *ecdsa.PrivateKey
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		pemKey, err := apnstoken.AuthKeyFromBytes([]byte(trimmed))
		if err != nil {
			return nil, &CredentialError{Err: err}
		}
		key = pemKey
	} else {
		der, err := base64.StdEncoding.DecodeString(stripSpace(trimmed))
		if err != nil {
			return nil, &CredentialError{Err: fmt.Errorf("decoding base64: %w", err)}
		}
		parsed, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, &CredentialError{Err: err}
		}
		ecKey, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, &CredentialError{Err: ErrNotECDSA}
		}
		key = ecKey
	}

	if key.Curve.Params().Name != "P-256" {
		return nil, &CredentialError{Err: ErrUnsupportedCurve}
	}
	return key, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
