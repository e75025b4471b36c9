// Package gcsuploader archives analysed images in Google Cloud Storage and
// reads them back for queued jobs.
package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Archive stores objects in a single bucket. It assumes Application Default
// Credentials are configured.
type Archive struct {
	client *storage.Client
	bucket string
}

// NewArchive creates a storage client for bucket.
func NewArchive(ctx context.Context, bucket string) (*Archive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewArchive: bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewArchive: create storage client: %w", err)
	}
	return &Archive{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (a *Archive) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// UploadBytes writes data under objectName and returns its gs:// URI.
func (a *Archive) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("UploadBytes: write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadBytes: finalize upload: %w", err)
	}

	return ObjectURI(a.bucket, objectName), nil
}

// FetchFromGCS downloads the bytes behind a gs:// URI.
func (a *Archive) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// ObjectURI formats a gs:// URI.
func ObjectURI(bucket, objectName string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(objectName, "/")
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(gcsURI string) (string, string, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.jpg" → "file.jpg"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}

// ImageObjectName lays images out as <owner>/<kind>/<sha256><ext> so a
// re-upload of the same image overwrites one object.
func ImageObjectName(ownerID, kind, sha256Hex, mimeType string) string {
	ext := ".bin"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	return path.Join(ownerID, kind, sha256Hex+ext)
}
