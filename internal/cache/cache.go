// Package cache keeps the short-lived shared state of the API: availability
// and catalog responses, geocoding results, and the codes and tokens of the
// account flows. Redis backs it when configured, process memory otherwise.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache maps keys to opaque values. A miss is ok=false, never an error. A
// ttl of zero keeps the entry until it is deleted.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Key builds a key from its namespace and parts, e.g.
// Key("availability", "2026-03-11", "legal_advice").
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// Disabled misses every read and drops every write. Services fall back to it
// when they are built without a cache.
var Disabled Cache = disabled{}

type disabled struct{}

func (disabled) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (disabled) Delete(context.Context, string) error                     { return nil }
func (disabled) DeletePrefix(context.Context, string) error               { return nil }
