package server

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidUserID is returned for identifiers that are not 24-character hex.
var ErrInvalidUserID = errors.New("invalid user id")

// ParseUserID validates a raw path segment as a 24-character hex object id.
// Callers must reject the request before touching the store when this fails.
func ParseUserID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidUserID
	}
	return id, nil
}
