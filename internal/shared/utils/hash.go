package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256  HashAlgorithm = "sha256"
	BLAKE2b HashAlgorithm = "blake2b-256"
)

// Hasher provides hashing over ordered, length-prefixed fields
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Algorithm returns the configured algorithm
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash computes a hex digest of the input data
func (h *Hasher) Hash(data []byte) string {
	d := h.newDigest(nil)
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

// HashString computes a hex digest of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFields computes a digest over fields in the order given. Each field is
// prefixed with its uvarint length so ("ab","c") and ("a","bc") differ and
// swapping two fields changes the digest.
func (h *Hasher) HashFields(fields ...string) string {
	d := h.newDigest(nil)
	writeFields(d, fields)
	return hex.EncodeToString(d.Sum(nil))
}

// KeyedFields computes a keyed digest (MAC) over ordered fields. Only BLAKE2b
// supports keying natively; SHA256 falls back to hashing the key as the
// first field.
func (h *Hasher) KeyedFields(key []byte, fields ...string) string {
	if h.algorithm == BLAKE2b {
		d := h.newDigest(key)
		writeFields(d, fields)
		return hex.EncodeToString(d.Sum(nil))
	}
	d := sha256.New()
	writeFields(d, append([]string{string(key)}, fields...))
	return hex.EncodeToString(d.Sum(nil))
}

// ShortHash returns the first n characters of a digest for display
func ShortHash(full string, n int) string {
	if len(full) < n {
		return full
	}
	return full[:n]
}

func (h *Hasher) newDigest(key []byte) hash.Hash {
	switch h.algorithm {
	case BLAKE2b:
		d, err := blake2b.New256(key)
		if err != nil {
			// key longer than 64 bytes; reduce it first
			sum := blake2b.Sum256(key)
			d, _ = blake2b.New256(sum[:])
		}
		return d
	default:
		return sha256.New()
	}
}

func writeFields(w hash.Hash, fields []string) {
	var prefix [binary.MaxVarintLen64]byte
	for _, f := range fields {
		n := binary.PutUvarint(prefix[:], uint64(len(f)))
		w.Write(prefix[:n])
		w.Write([]byte(f))
	}
}
