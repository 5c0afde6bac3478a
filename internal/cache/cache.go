// Package cache stores short-lived string values under slash separated keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("cache entry not found")

// PutOptions controls how a value is written. A zero TTL never expires.
type PutOptions struct {
	TTL time.Duration
}

type Cache interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key, value string, opts PutOptions) error
	Delete(ctx context.Context, key string) error
	Ready(ctx context.Context) error
}

// GetString reads a whole entry.
func GetString(ctx context.Context, c Cache, key string) (string, error) {
	rc, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rc.Close()
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// envelope carries the expiry for backends without native TTL support.
type envelope struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func wrap(value string, ttl time.Duration, now time.Time) ([]byte, error) {
	env := envelope{Value: value}
	if ttl > 0 {
		expires := now.Add(ttl).UTC()
		env.ExpiresAt = &expires
	}
	return json.Marshal(env)
}

// unwrap returns ErrNotFound for expired entries.
func unwrap(data []byte, now time.Time) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	if env.ExpiresAt != nil && !now.Before(*env.ExpiresAt) {
		return "", ErrNotFound
	}
	return env.Value, nil
}
