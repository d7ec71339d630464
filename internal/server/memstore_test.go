package server

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memBlobStore is an in-memory BlobStore double for handler tests. Blobs
// become visible only on Complete, matching the real store's contract.
type memBlobStore struct {
	mu        sync.Mutex
	blobs     []memBlob
	openCalls int
	findCalls int
	failNames map[string]bool // Complete fails for these names
	findErr   error
}

type memBlob struct {
	id         primitive.ObjectID
	name       string
	meta       BlobMetadata
	data       []byte
	uploadDate time.Time
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{failNames: map[string]bool{}}
}

func (s *memBlobStore) OpenWrite(_ context.Context, name string, meta BlobMetadata) (WriteHandle, error) {
	s.mu.Lock()
	s.openCalls++
	s.mu.Unlock()
	return &memWrite{store: s, name: name, meta: meta}, nil
}

func (s *memBlobStore) OpenRead(_ context.Context, id primitive.ObjectID) (ReadHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blobs {
		if b.id == id {
			return &memRead{reader: bytes.NewReader(b.data), desc: descriptorOf(b)}, nil
		}
	}
	return nil, ErrBlobNotFound
}

func (s *memBlobStore) FindByOwner(_ context.Context, owner primitive.ObjectID) ([]BlobDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []BlobDescriptor
	for _, b := range s.blobs {
		if b.meta.UserID == owner {
			out = append(out, descriptorOf(b))
		}
	}
	return out, nil
}

// seed inserts a blob directly, bypassing the write path.
func (s *memBlobStore) seed(owner primitive.ObjectID, name, contentType string, data []byte) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := memBlob{
		id:   primitive.NewObjectID(),
		name: name,
		meta: BlobMetadata{
			UserID:       owner,
			OriginalName: name,
			ContentType:  contentType,
		},
		data:       data,
		uploadDate: time.Now().UTC(),
	}
	s.blobs = append(s.blobs, b)
	return b.id
}

func descriptorOf(b memBlob) BlobDescriptor {
	return BlobDescriptor{
		ID:          b.id.Hex(),
		Name:        b.name,
		ContentType: b.meta.ContentType,
		Length:      int64(len(b.data)),
		UploadDate:  b.uploadDate,
	}
}

type memWrite struct {
	store *memBlobStore
	name  string
	meta  BlobMetadata
	buf   bytes.Buffer
}

func (w *memWrite) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWrite) Complete() (string, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if w.store.failNames[w.name] {
		return "", errors.New("write transport failed")
	}
	b := memBlob{
		id:         primitive.NewObjectID(),
		name:       w.name,
		meta:       w.meta,
		data:       append([]byte(nil), w.buf.Bytes()...),
		uploadDate: time.Now().UTC(),
	}
	w.store.blobs = append(w.store.blobs, b)
	return b.id.Hex(), nil
}

func (w *memWrite) Abort() error { return nil }

type memRead struct {
	reader *bytes.Reader
	desc   BlobDescriptor
}

func (r *memRead) Read(p []byte) (int, error) { return r.reader.Read(p) }
func (r *memRead) Close() error               { return nil }
func (r *memRead) Descriptor() BlobDescriptor { return r.desc }
