// Package fileid derives stable document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "doc:"

// DocID returns a deterministic ID for the file at absolutePath. The same
// path always yields the same ID, so re-ingesting a file updates its record
// instead of creating a new one.
func DocID(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return prefix + hex.EncodeToString(hash[:16])
}
