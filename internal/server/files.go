package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// listFilesResp is the JSON response for GET /files/{userId}.
type listFilesResp struct {
	Count int              `json:"count"`
	Files []BlobDescriptor `json:"files"`
}

// listFilesHandler handles GET /files/{userId}: an exact-match metadata query
// for the blobs owned by one user. An empty result set is a normal outcome.
func (cfg Config) listFilesHandler(store BlobStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, err := ParseUserID(strings.TrimPrefix(r.URL.Path, "/files/"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		files, err := store.FindByOwner(r.Context(), userID)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=find_by_owner err=%v", rid, err)
			GetMetrics().RecordQueryError()
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		GetMetrics().RecordQuery()

		if files == nil {
			files = []BlobDescriptor{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(listFilesResp{
			Count: len(files),
			Files: files,
		})
	})
}
