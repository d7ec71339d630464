//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/abdulahaddf/seo-server/internal/server"
)

// TestAPIWorkflow exercises the full user listing, upload, listing and
// download flow against a real MongoDB started with dockertest.
func TestAPIWorkflow(t *testing.T) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start mongo: %v", err)
	}
	defer func() { _ = pool.Purge(resource) }()

	uri := "mongodb://localhost:" + resource.GetPort("27017/tcp")

	var client *mongo.Client
	if err := pool.Retry(func() error {
		var err error
		client, err = server.OpenMongo(uri)
		return err
	}); err != nil {
		t.Fatalf("could not connect to mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := client.Database("SEOpage")
	store, err := server.NewGridFSStore(db, "")
	if err != nil {
		t.Fatalf("could not open blob store: %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("could not create indexes: %v", err)
	}

	users := db.Collection("Users")
	if _, err := users.InsertOne(ctx, bson.M{"name": "Test User", "email": "test@example.com"}); err != nil {
		t.Fatalf("could not seed users: %v", err)
	}

	srv := server.New(server.Config{
		Addr:   ":0",
		Build:  server.BuildInfo{Version: "integration"},
		Client: client,
		DB:     db,
		Store:  store,
		Users:  users,
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	userA := primitive.NewObjectID().Hex()
	userB := primitive.NewObjectID().Hex()
	var downloadID string

	t.Run("Liveness", func(t *testing.T) {
		resp, err := httpClient.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("liveness request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "SEO server listening" {
			t.Errorf("unexpected liveness body %q", body)
		}
	})

	t.Run("ListUsers", func(t *testing.T) {
		resp, err := httpClient.Get(ts.URL + "/users")
		if err != nil {
			t.Fatalf("users request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var got []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode users: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 user, got %d", len(got))
		}
		if got[0]["email"] != "test@example.com" {
			t.Errorf("unexpected user record: %v", got[0])
		}
	})

	t.Run("UploadBatch", func(t *testing.T) {
		req := newUploadRequest(t, ts.URL+"/upload/"+userA, map[string][]byte{
			"report.txt": []byte("hello gridfs"),
			"image.png":  bytes.Repeat([]byte{0x89}, 2048),
		})

		resp, err := httpClient.Do(req)
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var got struct {
			Message string   `json:"message"`
			FileIDs []string `json:"fileIds"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode upload response: %v", err)
		}
		if got.Message != "Files uploaded successfully!" {
			t.Errorf("unexpected message %q", got.Message)
		}
		if len(got.FileIDs) != 2 {
			t.Fatalf("expected 2 file ids, got %d", len(got.FileIDs))
		}
	})

	t.Run("ListFilesForOwner", func(t *testing.T) {
		resp, err := httpClient.Get(ts.URL + "/files/" + userA)
		if err != nil {
			t.Fatalf("list request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var got struct {
			Count int `json:"count"`
			Files []struct {
				ID     string `json:"fileId"`
				Name   string `json:"name"`
				Length int64  `json:"length"`
			} `json:"files"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode list response: %v", err)
		}
		if got.Count != 2 || len(got.Files) != 2 {
			t.Fatalf("expected 2 files, got count=%d len=%d", got.Count, len(got.Files))
		}
		for _, f := range got.Files {
			if f.Name == "report.txt" {
				downloadID = f.ID
			}
		}
		if downloadID == "" {
			t.Fatal("report.txt missing from listing")
		}
	})

	t.Run("ListFilesOtherOwnerEmpty", func(t *testing.T) {
		resp, err := httpClient.Get(ts.URL + "/files/" + userB)
		if err != nil {
			t.Fatalf("list request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var got struct {
			Count int               `json:"count"`
			Files []json.RawMessage `json:"files"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode list response: %v", err)
		}
		if got.Count != 0 || got.Files == nil || len(got.Files) != 0 {
			t.Errorf("expected empty files array, got count=%d files=%v", got.Count, got.Files)
		}
	})

	t.Run("DownloadRoundTrip", func(t *testing.T) {
		if downloadID == "" {
			t.Skip("no file id from listing")
		}
		resp, err := httpClient.Get(ts.URL + "/download/" + downloadID)
		if err != nil {
			t.Fatalf("download failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read download: %v", err)
		}
		if string(body) != "hello gridfs" {
			t.Errorf("downloaded content mismatch: %q", body)
		}
	})

	t.Run("DownloadUnknownID", func(t *testing.T) {
		resp, err := httpClient.Get(ts.URL + "/download/" + primitive.NewObjectID().Hex())
		if err != nil {
			t.Fatalf("download failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("Health", func(t *testing.T) {
		resp, err := httpClient.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("health request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var got struct {
			Status     string                     `json:"status"`
			Components map[string]json.RawMessage `json:"components"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		if got.Status != "healthy" {
			t.Errorf("expected healthy, got %s", got.Status)
		}
		if _, ok := got.Components["database"]; !ok {
			t.Error("missing database component")
		}
		if _, ok := got.Components["blobstore"]; !ok {
			t.Error("missing blobstore component")
		}
	})
}

// newUploadRequest builds a multipart POST with every payload under the
// "files" form field.
func newUploadRequest(t *testing.T, url string, files map[string][]byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
