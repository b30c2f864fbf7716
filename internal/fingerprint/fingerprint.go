package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const bufferSize = 64 * 1024 // 64KB buffer for streaming

// Digest is a SHA-256 content digest. Fixed-size so values compare with ==
// and a map of entries never aliases hash state.
type Digest [sha256.Size]byte

// String returns the lowercase hex rendering used in logs and the history
// database.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// File computes the SHA-256 digest of the file at path, streaming its
// contents so working memory stays constant regardless of file size.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Reader(f)
}

// Reader computes the SHA-256 digest of everything readable from r.
func Reader(r io.Reader) (Digest, error) {
	h := sha256.New()
	buf := make([]byte, bufferSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, fmt.Errorf("read: %w", err)
		}
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}
