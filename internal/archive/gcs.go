// Package archive keeps copies of uploaded statements in Cloud Storage for
// audit and re-import. Archival is best-effort: a failure is logged by the
// caller and never fails the preview that triggered it.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archiver stores an uploaded statement file under a generated object name.
type Archiver interface {
	Archive(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// GCS archives statements to a bucket. Assumes Application Default
// Credentials are configured.
type GCS struct {
	bucket string
}

// NewGCS creates an archiver for the given bucket.
func NewGCS(bucket string) *GCS {
	return &GCS{bucket: bucket}
}

// Archive uploads the statement bytes and returns the object's gs:// URI.
// Object names are date-partitioned and prefixed with a UUID so repeated
// uploads of the same file never collide.
func (g *GCS) Archive(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	objectName := fmt.Sprintf("uploads/%s/%s",
		time.Now().UTC().Format("2006/01/02"),
		uuid.New().String()+"-"+filepath.Base(filename))

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy statement to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, objectName), nil
}
