package storage

import "context"

// Store publishes rendered artifacts and hands back the URL callers can
// fetch them from.
type Store interface {
	// Publish uploads the local file under the given key and returns its
	// public URL and size in bytes.
	Publish(ctx context.Context, key, localPath string) (string, int64, error)
}
