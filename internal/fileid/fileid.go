// Package fileid derives deterministic document IDs for ingested files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	pathPrefix    = "file:"
	contentPrefix = "sha256:"
)

// FileDocID returns a stable document ID for an absolute path. Re-ingesting the same
// path updates the same document.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return pathPrefix + hex.EncodeToString(hash[:])
}

// ContentDocID returns a document ID for uploaded bytes. Uploading identical content
// twice resolves to one document.
func ContentDocID(content []byte) string {
	hash := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(hash[:16])
}
