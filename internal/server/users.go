package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// usersHandler handles GET /users: a full scan of the user collection. The
// documents are relayed as-is; this service does not own their schema.
func (cfg Config) usersHandler(users *mongo.Collection) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		cursor, err := users.Find(ctx, bson.D{})
		if err != nil {
			writeUsersError(w, err)
			return
		}

		records := []bson.M{}
		if err := cursor.All(ctx, &records); err != nil {
			writeUsersError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(records)
	})
}

// writeUsersError mirrors the {message, error} body the frontend expects.
func writeUsersError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": "Error fetching users",
		"error":   err.Error(),
	})
}
