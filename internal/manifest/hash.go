package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Digest is a file's SHA-256 and size.
type Digest struct {
	SHA256    string
	SizeBytes int64
}

// HashFile streams path through SHA-256.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, errors.Wrapf(err, "open %s for hashing", path)
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader hashes everything read from r.
func HashReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, errors.Wrap(err, "hash content")
	}
	return Digest{SHA256: hex.EncodeToString(h.Sum(nil)), SizeBytes: n}, nil
}
