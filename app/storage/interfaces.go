package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore persists article bodies under opaque keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, body string) error
	// Get reports false when the key does not exist.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// ContentKey is where the derived body of a document lives.
func ContentKey(documentID string) string {
	return fmt.Sprintf("articles/%s/content.html", documentID)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
