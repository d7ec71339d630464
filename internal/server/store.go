package server

import (
	"context"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrBlobNotFound is returned when a blob id does not resolve to a stored blob.
var ErrBlobNotFound = errors.New("blob not found")

// BlobMetadata is attached to every blob at write time. UserID is the sole
// basis for later ownership queries; the store does not enforce it
// referentially.
type BlobMetadata struct {
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	OriginalName string             `bson:"originalName" json:"originalName"`
	ContentType  string             `bson:"contentType" json:"contentType"`
}

// BlobDescriptor describes one stored blob as returned by owner queries.
type BlobDescriptor struct {
	ID          string    `json:"fileId"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Length      int64     `json:"length"`
	UploadDate  time.Time `json:"uploadDate"`
}

// WriteHandle accepts the bytes of one blob. The blob gets its id and becomes
// queryable only when Complete returns; an aborted or failed write leaves
// nothing queryable behind.
type WriteHandle interface {
	io.Writer

	// Complete finalizes the write and returns the assigned blob id.
	Complete() (string, error)

	// Abort discards the partial write.
	Abort() error
}

// ReadHandle streams a stored blob back to the caller.
type ReadHandle interface {
	io.ReadCloser

	// Descriptor returns the stored blob's metadata.
	Descriptor() BlobDescriptor
}

// BlobStore is the storage capability the handlers are written against:
// store a named binary blob with metadata, stream it back later, query by
// owner. Handlers receive it through Config so tests can swap in a double.
type BlobStore interface {
	OpenWrite(ctx context.Context, name string, meta BlobMetadata) (WriteHandle, error)
	OpenRead(ctx context.Context, id primitive.ObjectID) (ReadHandle, error)
	FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]BlobDescriptor, error)
}
