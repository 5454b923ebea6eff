package authplugin

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Out-of-band signal bytes caching_sha2_password sends via AuthMoreData.
const (
	fastAuthSuccess byte = 0x03
	fullAuthNeeded  byte = 0x04
)

// ErrFullAuthRequired names the condition where the fast-auth path isn't
// available and the full exchange (TLS or EncryptPassword) is needed.
// Scramble never returns it.
var ErrFullAuthRequired = errors.New("authplugin: caching_sha2_password requires full authentication")

// cachingSHA2Password implements caching_sha2_password's fast-auth path:
// SHA256(password) XOR SHA256(SHA256(SHA256(password)) + nonce). The
// server caches this the first time a user authenticates over an
// unencrypted connection and accepts it directly (AuthMoreData
// fastAuthSuccess) on subsequent connections; a cache miss asks for full
// authentication instead (AuthMoreData fullAuthNeeded), which requires
// either TLS or an RSA-OAEP encrypted password exchange (EncryptPassword).
type cachingSHA2Password struct{}

func (cachingSHA2Password) Name() string { return "caching_sha2_password" }

func (cachingSHA2Password) Scramble(password string, nonce []byte) ([]byte, error) {
	if password == "" {
		return nil, nil
	}

	pwHash := sha256.Sum256([]byte(password))
	pwHashHash := sha256.Sum256(pwHash[:])

	h := sha256.New()
	h.Write(pwHashHash[:])
	h.Write(nonce)
	nonceHash := h.Sum(nil)

	out := make([]byte, sha256.Size)
	for i := range out {
		out[i] = pwHash[i] ^ nonceHash[i]
	}
	return out, nil
}

// InterpretMoreData classifies an AuthMoreData payload as either the
// fast-auth success signal, a request for full authentication, or (when
// neither marker byte matches) a raw RSA public key the server sent in
// response to a public-key request.
func InterpretMoreData(data []byte) (fastAuthOK, fullAuthRequired bool, publicKeyPEM []byte) {
	if len(data) == 1 {
		switch data[0] {
		case fastAuthSuccess:
			return true, false, nil
		case fullAuthNeeded:
			return false, true, nil
		}
	}
	return false, false, data
}

// EncryptPassword RSA-OAEP encrypts password XORed with nonce against the
// server's public key, as caching_sha2_password's (and sha256_password's)
// full-auth path requires when the connection isn't already TLS-protected.
func EncryptPassword(password string, nonce []byte, publicKeyPEM []byte) ([]byte, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("authplugin: invalid RSA public key PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authplugin: parsing RSA public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("authplugin: server key is not RSA")
	}

	xored := xorWithRepeatingNonce([]byte(password+"\x00"), nonce)
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, rsaPub, xored, nil)
}

func xorWithRepeatingNonce(data, nonce []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ nonce[i%len(nonce)]
	}
	return out
}
