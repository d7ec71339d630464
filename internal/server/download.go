package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// downloadHandler handles GET /download/{fileId}: streams one stored blob
// back to the client with its recorded content type and original name.
func (cfg Config) downloadHandler(store BlobStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		raw := strings.TrimPrefix(r.URL.Path, "/download/")
		fileID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			http.Error(w, "invalid file id", http.StatusBadRequest)
			return
		}

		rh, err := store.OpenRead(r.Context(), fileID)
		if err != nil {
			if errors.Is(err, ErrBlobNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=open_read err=%v", rid, err)
			GetMetrics().RecordDownloadError()
			http.Error(w, "store error", http.StatusBadGateway)
			return
		}
		defer func() { _ = rh.Close() }()

		desc := rh.Descriptor()
		if desc.ContentType != "" {
			w.Header().Set("Content-Type", desc.ContentType)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		if desc.Length > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(desc.Length, 10))
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", desc.Name))

		start := time.Now()
		n, err := io.Copy(w, rh)
		if err != nil {
			// Headers are already out; log and account, nothing else to do.
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=download_copy err=%v", rid, err)
			GetMetrics().RecordDownloadError()
			return
		}
		GetMetrics().RecordDownload(n, time.Since(start))
	})
}
