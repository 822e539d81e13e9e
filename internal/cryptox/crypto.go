// Package cryptox encrypts credential strings under the backend's RSA public
// key before they leave the client.
//
// RSA-OAEP can only seal a bounded number of bytes per operation, so a
// plaintext is split into consecutive chunks that each fit the bound, every
// chunk is encrypted on its own, and the base64 ciphertexts are joined with
// common.ChunkDelimiter. The receiver splits on the delimiter, decrypts each
// chunk and concatenates the results in order.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"hash"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/otaverifier/internal/common"
)

// oaepHash is the OAEP digest. The backend decrypts with SHA-256 for both the
// label hash and MGF1.
func oaepHash() hash.Hash { return sha256.New() }

// ParsePublicKeyPEM decodes an RSA public key in PKIX ("PUBLIC KEY") or
// PKCS#1 ("RSA PUBLIC KEY") PEM form.
func ParsePublicKeyPEM(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemKey)))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", common.ErrInvalidPublicKey)
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidPublicKey, err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key (%T)", common.ErrInvalidPublicKey, key)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidPublicKey, err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", common.ErrInvalidPublicKey, block.Type)
	}
}

// MaxOAEPPlaintext is the largest message, in bytes, that one OAEP operation
// under pub with digest h can seal: k - 2*hLen - 2. For RSA-2048 with SHA-256
// this is 190.
func MaxOAEPPlaintext(pub *rsa.PublicKey, h hash.Hash) int {
	return pub.Size() - 2*h.Size() - 2
}

// SplitPlaintext cuts s into consecutive pieces of at most max bytes. A piece
// never ends inside a UTF-8 sequence, so every piece decodes on its own. For
// ASCII input the result has exactly ceil(len(s)/max) pieces; empty input
// yields none.
func SplitPlaintext(s string, max int) []string {
	if s == "" || max <= 0 {
		return nil
	}

	chunks := make([]string, 0, (len(s)+max-1)/max)
	for len(s) > 0 {
		end := max
		if end >= len(s) {
			chunks = append(chunks, s)
			break
		}
		for end > 0 && !utf8.RuneStart(s[end]) {
			end--
		}
		if end == 0 {
			// A single rune is wider than max; emit it whole and let
			// encryption report the size error.
			_, w := utf8.DecodeRuneInString(s)
			end = w
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}

// EncryptChunks encrypts every chunk of plaintext under pub and returns the
// base64 ciphertexts in order.
func EncryptChunks(plaintext string, pub *rsa.PublicKey) ([]string, error) {
	max := MaxOAEPPlaintext(pub, oaepHash())
	if max <= 0 {
		return nil, fmt.Errorf("%w: key of %d bits is too small for OAEP", common.ErrEncryption, pub.N.BitLen())
	}

	pieces := SplitPlaintext(plaintext, max)
	out := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		ct, err := rsa.EncryptOAEP(oaepHash(), rand.Reader, pub, []byte(piece), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", common.ErrEncryption, i, err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(ct))
	}
	return out, nil
}

// EncryptChunked is the transport form of EncryptChunks: the chunks joined by
// common.ChunkDelimiter. An empty plaintext yields "" without touching the
// key.
func EncryptChunked(plaintext, pemKey string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	pub, err := ParsePublicKeyPEM(pemKey)
	if err != nil {
		return "", err
	}

	chunks, err := EncryptChunks(plaintext, pub)
	if err != nil {
		return "", err
	}
	return strings.Join(chunks, common.ChunkDelimiter), nil
}

// DecryptChunked reverses EncryptChunked. Blank chunks are skipped.
func DecryptChunked(encoded string, priv *rsa.PrivateKey) (string, error) {
	var sb strings.Builder
	for i, chunk := range strings.Split(encoded, common.ChunkDelimiter) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		ct, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return "", fmt.Errorf("chunk %d: decode: %w", i, err)
		}
		pt, err := rsa.DecryptOAEP(oaepHash(), rand.Reader, priv, ct, nil)
		if err != nil {
			return "", fmt.Errorf("chunk %d: decrypt: %w", i, err)
		}
		sb.Write(pt)
	}
	return sb.String(), nil
}

// EncodePublicKeyPEM renders pub as a PKIX "PUBLIC KEY" PEM block, the form
// served by the backend.
func EncodePublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// WipeBytes overwrites b with zeros so secrets read from the terminal do
// not linger in memory. A nil slice is a no-op.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
