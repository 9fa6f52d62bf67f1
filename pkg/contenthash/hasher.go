// Package contenthash fingerprints file content with SHA-256 without holding
// the whole stream in memory.
package contenthash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is used when a Hasher is built without an explicit chunk size.
const DefaultChunkSize = 64 * 1024

// HexLength is the length of an encoded digest.
const HexLength = sha256.Size * 2

// ErrTooLarge is returned once the stream exceeds the configured byte limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// Digest is the fingerprint of one stream.
type Digest struct {
	Hex  string
	Size int64
}

// Hasher reads streams in fixed-size chunks and feeds them into SHA-256.
type Hasher struct {
	chunkSize int
	maxBytes  int64
}

// New builds a hasher. maxBytes <= 0 disables the size limit.
func New(chunkSize int, maxBytes int64) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{chunkSize: chunkSize, maxBytes: maxBytes}
}

// ChunkSize exposes the configured read size.
func (h *Hasher) ChunkSize() int {
	return h.chunkSize
}

// Sum consumes r until EOF and returns its digest. No partial digest is
// returned when reading fails, the context ends, or the limit is crossed.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (Digest, error) {
	if r == nil {
		return Digest{}, fmt.Errorf("hash content: nil reader")
	}
	hash := sha256.New()
	buf := make([]byte, h.chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return Digest{}, fmt.Errorf("hash content: %w", err)
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += int64(n)
			if h.maxBytes > 0 && total > h.maxBytes {
				return Digest{}, ErrTooLarge
			}
			_, _ = hash.Write(buf[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return Digest{}, fmt.Errorf("read content: %w", err)
		}
	}
	return Digest{Hex: hex.EncodeToString(hash.Sum(nil)), Size: total}, nil
}

// Valid reports whether raw looks like an encoded digest.
func Valid(raw string) bool {
	if len(raw) != HexLength {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}
