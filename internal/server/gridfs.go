package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultBucketName = "files"

// GridFSStore implements BlobStore on top of a GridFS bucket. Each blob is
// one GridFS file; ownership lives in the file document's metadata.
type GridFSStore struct {
	bucket *gridfs.Bucket
	files  *mongo.Collection
}

// NewGridFSStore opens the named bucket on db. An empty bucketName selects
// the default "files" bucket.
func NewGridFSStore(db *mongo.Database, bucketName string) (*GridFSStore, error) {
	if bucketName == "" {
		bucketName = defaultBucketName
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSStore{
		bucket: bucket,
		files:  db.Collection(bucketName + ".files"),
	}, nil
}

// FilesCollection returns the bucket's files collection for metadata probes.
func (s *GridFSStore) FilesCollection() *mongo.Collection {
	return s.files
}

// EnsureIndexes creates the metadata.userId index owner queries depend on.
// GridFS itself only indexes filename and chunk ordering.
func (s *GridFSStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metadata.userId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	return nil
}

func (s *GridFSStore) OpenWrite(ctx context.Context, name string, meta BlobMetadata) (WriteHandle, error) {
	stream, err := s.bucket.OpenUploadStream(name, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return nil, fmt.Errorf("open upload stream: %w", err)
	}
	// The v1 gridfs API carries deadlines on the stream rather than per call.
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}
	return &gridfsWrite{stream: stream}, nil
}

func (s *GridFSStore) OpenRead(ctx context.Context, id primitive.ObjectID) (ReadHandle, error) {
	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("open download stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	file := stream.GetFile()
	desc := BlobDescriptor{
		Name:       file.Name,
		Length:     file.Length,
		UploadDate: file.UploadDate,
	}
	if oid, ok := file.ID.(primitive.ObjectID); ok {
		desc.ID = oid.Hex()
	}
	if len(file.Metadata) > 0 {
		var meta BlobMetadata
		if err := bson.Unmarshal(file.Metadata, &meta); err == nil {
			desc.ContentType = meta.ContentType
		}
	}
	return &gridfsRead{stream: stream, desc: desc}, nil
}

// FindByOwner returns the descriptors of every blob whose metadata carries
// the given owner id, in store insertion order.
func (s *GridFSStore) FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]BlobDescriptor, error) {
	return s.find(ctx, bson.D{{Key: "metadata.userId", Value: owner}})
}

// ListAll returns the descriptors of every blob in the bucket. Used by the
// backup mirror; request handlers always filter by owner.
func (s *GridFSStore) ListAll(ctx context.Context) ([]BlobDescriptor, error) {
	return s.find(ctx, bson.D{})
}

func (s *GridFSStore) find(ctx context.Context, filter bson.D) ([]BlobDescriptor, error) {
	cursor, err := s.bucket.Find(filter)
	if err != nil {
		return nil, fmt.Errorf("find blobs: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var out []BlobDescriptor
	for cursor.Next(ctx) {
		var f gridfsFileDoc
		if err := cursor.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode blob descriptor: %w", err)
		}
		out = append(out, BlobDescriptor{
			ID:          f.ID.Hex(),
			Name:        f.Name,
			ContentType: f.Metadata.ContentType,
			Length:      f.Length,
			UploadDate:  f.UploadDate,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate blobs: %w", err)
	}
	return out, nil
}

// gridfsFileDoc mirrors the fields of a <bucket>.files document.
type gridfsFileDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   BlobMetadata       `bson:"metadata"`
}

type gridfsWrite struct {
	stream *gridfs.UploadStream
}

func (w *gridfsWrite) Write(p []byte) (int, error) {
	return w.stream.Write(p)
}

func (w *gridfsWrite) Complete() (string, error) {
	// Close flushes the remaining chunks and inserts the files document;
	// until then the blob is not queryable.
	if err := w.stream.Close(); err != nil {
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	if oid, ok := w.stream.FileID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", w.stream.FileID), nil
}

func (w *gridfsWrite) Abort() error {
	return w.stream.Abort()
}

type gridfsRead struct {
	stream *gridfs.DownloadStream
	desc   BlobDescriptor
}

func (r *gridfsRead) Read(p []byte) (int, error) {
	return r.stream.Read(p)
}

func (r *gridfsRead) Close() error {
	return r.stream.Close()
}

func (r *gridfsRead) Descriptor() BlobDescriptor {
	return r.desc
}
