package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// uploadFile is one payload taken off the multipart batch. The batch is
// request-scoped; nothing survives the handler except the returned blob ids.
type uploadFile struct {
	OriginalName string
	ContentType  string
	Data         []byte
}

// uploadFileResult reports the outcome for a single file in the batch.
type uploadFileResult struct {
	Name   string `json:"name"`
	FileID string `json:"fileId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// uploadResp is the JSON response for an upload batch. FileIDs lists exactly
// the files whose writes completed; Files carries the per-file outcomes.
type uploadResp struct {
	Message string             `json:"message"`
	FileIDs []string           `json:"fileIds"`
	Files   []uploadFileResult `json:"files"`
}

// maxUploadBytes reads the SEO_MAX_UPLOAD_BYTES environment variable and
// returns the maximum allowed request size in bytes. Returns 0 if not set
// (meaning no limit). Returns an error if the value cannot be parsed.
func maxUploadBytes() (int64, error) {
	raw := os.Getenv("SEO_MAX_UPLOAD_BYTES")
	if raw == "" {
		return 0, nil // no limit configured
	}
	return strconv.ParseInt(raw, 10, 64)
}

// uploadHandler handles POST /upload/{userId}: a multipart batch of files
// under the form field "files", each stored as one blob tagged with the
// owning user id. Every per-file write is joined before the response is
// produced, so fileIds reflects settled outcomes rather than writes still in
// flight. Files succeed or fail independently; there is no batch atomicity.
func (cfg Config) uploadHandler(store BlobStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit, err := maxUploadBytes()
		if err != nil {
			http.Error(w, "server misconfigured", http.StatusInternalServerError)
			return
		}
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}

		// Validation precedes any store access.
		userID, err := ParseUserID(strings.TrimPrefix(r.URL.Path, "/upload/"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		batch, err := readUploadBatch(r)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		if len(batch) == 0 {
			http.Error(w, "no files uploaded", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		results := make([]uploadFileResult, len(batch))

		var wg sync.WaitGroup
		for i, f := range batch {
			wg.Add(1)
			go func(i int, f uploadFile) {
				defer wg.Done()
				start := time.Now()
				id, err := storeOne(ctx, store, userID, f)
				if err != nil {
					rid := RequestIDFromContext(ctx)
					log.Printf("rid=%s msg=store_write name=%q err=%v", rid, f.OriginalName, err)
					GetMetrics().RecordUploadError()
					results[i] = uploadFileResult{Name: f.OriginalName, Error: "store error"}
					return
				}
				GetMetrics().RecordUpload(int64(len(f.Data)), time.Since(start))
				results[i] = uploadFileResult{Name: f.OriginalName, FileID: id}
			}(i, f)
		}
		wg.Wait()

		fileIDs := make([]string, 0, len(results))
		failed := 0
		for _, res := range results {
			if res.Error != "" {
				failed++
				continue
			}
			fileIDs = append(fileIDs, res.FileID)
		}

		status := http.StatusOK
		message := "Files uploaded successfully!"
		if failed > 0 {
			// Completed siblings stay stored; the per-file list says which.
			status = http.StatusInternalServerError
			message = "Error uploading file"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(uploadResp{
			Message: message,
			FileIDs: fileIDs,
			Files:   results,
		})
	})
}

// readUploadBatch drains the multipart form and buffers every "files" part
// in memory. Parts under other field names are ignored.
func readUploadBatch(r *http.Request) ([]uploadFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	var batch []uploadFile
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if part.FormName() != "files" {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}

		batch = append(batch, uploadFile{
			OriginalName: SanitizeFilename(part.FileName()),
			ContentType:  part.Header.Get("Content-Type"),
			Data:         data,
		})
	}
	return batch, nil
}

// storeOne writes a single file through the blob store adapter: open a write,
// attach ownership metadata, stream the bytes, complete.
func storeOne(ctx context.Context, store BlobStore, owner primitive.ObjectID, f uploadFile) (string, error) {
	wh, err := store.OpenWrite(ctx, f.OriginalName, BlobMetadata{
		UserID:       owner,
		OriginalName: f.OriginalName,
		ContentType:  f.ContentType,
	})
	if err != nil {
		return "", err
	}
	if _, err := wh.Write(f.Data); err != nil {
		_ = wh.Abort()
		return "", err
	}
	return wh.Complete()
}
