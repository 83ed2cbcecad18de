package bbb

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// Algorithm names a digest accepted by the conferencing backend for request checksums.
type Algorithm string

const (
	// SHA1 is the backend default and the only algorithm every deployment accepts.
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// ParseAlgorithm normalizes a configured algorithm name. An empty value selects SHA1.
func ParseAlgorithm(value string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(value))); alg {
	case "":
		return SHA1, nil
	case SHA1, SHA256, SHA384, SHA512:
		return alg, nil
	default:
		return "", fmt.Errorf("bbb: unsupported checksum algorithm %q", value)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	default:
		return sha1.New()
	}
}

// Sign computes the checksum the backend recomputes for every API call: the hex
// digest of action, the exact query string sent on the wire, and the shared secret.
func Sign(alg Algorithm, action, query, secret string) string {
	h := alg.newHash()
	h.Write([]byte(action))
	h.Write([]byte(query))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
