package attach

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeFileHash streams the file at fsPath through SHA-256 and returns the
// hex-encoded digest, using constant memory regardless of file size — the
// same streaming pattern the teacher uses for its own content hash, applied
// here to the algorithm the sync document actually specifies.
func ComputeFileHash(fsPath string) (string, error) {
	f, err := os.Open(fsPath)
	if err != nil {
		return "", fmt.Errorf("attach: opening %s for hashing: %w", fsPath, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("attach: hashing %s: %w", fsPath, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeBytesHash hashes an in-memory blob, for the post-download
// integrity check where the bytes are already resident.
func ComputeBytesHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
