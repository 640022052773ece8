// Package storage moves package bundles in and out of content-addressed
// storage. Client holds the bundle lifecycle (archive, upload, download,
// extract, clean up); a Provider only stores and fetches bytes.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by providers when no object has the address.
var ErrNotFound = errors.New("content not found")

// Provider is one content-addressed backend.
type Provider interface {
	// Name identifies the backend in logs ("pinata", "local").
	Name() string
	// Put stores the file at path and returns its content address.
	Put(ctx context.Context, path string, meta PinMetadata) (*Pin, error)
	// Get streams the object at addr into w and returns the bytes written.
	Get(ctx context.Context, addr string, w io.Writer) (int64, error)
	// Ping verifies the backend is reachable and the credentials work.
	Ping(ctx context.Context) error
}

// PinMetadata is attached to an upload where the backend supports it.
type PinMetadata struct {
	Name      string
	KeyValues map[string]string
}

// Pin is what a provider reports for a stored object.
type Pin struct {
	ContentAddress string
	Size           int64
	Timestamp      time.Time
}

// UploadResult is returned by UploadFile and UploadDirectory.
type UploadResult struct {
	ContentAddress string    `json:"contentAddress"`
	Size           int64     `json:"size"`
	Timestamp      time.Time `json:"timestamp"`
}
