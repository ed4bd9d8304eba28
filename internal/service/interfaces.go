package service

import (
	"context"
	"time"
)

// TokenBlacklist remembers revoked token ids until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// ImageStore persists recipe images and returns their public URL. Delete
// of a missing key is not an error.
type ImageStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ TokenBlacklist = (*RedisTokenBlacklist)(nil)
	_ TokenBlacklist = (*MemoryTokenBlacklist)(nil)
	_ ImageStore     = (*S3ImageStore)(nil)
	_ ImageStore     = (*DiskImageStore)(nil)
)
