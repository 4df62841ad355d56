package filestorage

import (
	"io"
)

// BlobStore stores attachment bytes addressed by an opaque reference.
type BlobStore interface {
	// Put stores content under a generated reference. The original filename
	// is kept only as a hint for the stored object's extension.
	Put(content []byte, filename string) (ref string, err error)

	// Stream opens the content behind ref. A missing reference yields
	// ErrBlobNotFound, not a generic failure.
	Stream(ref string) (io.ReadCloser, error)

	// Delete removes the content behind ref. Deleting a missing reference
	// is not an error.
	Delete(ref string) error
}
