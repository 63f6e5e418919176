package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// MediaResolver fetches generated files referenced by stream events and
// materializes them under a local media directory. The returned handle
// is the file's path, which the terminal renderer (or anything else)
// can open directly.
//
// Resolutions for distinct ids run independently; fetching the same id
// twice just rewrites the same file.
type MediaResolver struct {
	client   *Client
	mediaDir string
}

// NewMediaResolver creates a resolver writing into mediaDir
func NewMediaResolver(client *Client, mediaDir string) *MediaResolver {
	return &MediaResolver{
		client:   client,
		mediaDir: mediaDir,
	}
}

// EnsureMediaDir ensures the media directory exists
func (r *MediaResolver) EnsureMediaDir() error {
	return os.MkdirAll(r.mediaDir, 0755)
}

// Resolve fetches the file and returns its local path. All failures are
// wrapped in MediaFetchError; callers treat them as non-fatal and leave
// the attachment slot unresolved.
func (r *MediaResolver) Resolve(ctx context.Context, fileID, fileType string) (string, error) {
	if fileID == "" {
		return "", &MediaFetchError{FileID: fileID, Err: fmt.Errorf("empty file id")}
	}

	data, err := r.client.FetchFile(ctx, fileID, fileType)
	if err != nil {
		return "", &MediaFetchError{FileID: fileID, Err: err}
	}

	if err := r.EnsureMediaDir(); err != nil {
		return "", &MediaFetchError{FileID: fileID, Err: err}
	}

	path := filepath.Join(r.mediaDir, localFileName(fileID, fileType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", &MediaFetchError{FileID: fileID, Err: err}
	}

	LogDebug("Resolved media %s (%d bytes) -> %s", fileID, len(data), path)
	return path, nil
}

// localFileName builds a stable on-disk name for a fetched file. The
// fileType hint becomes the extension when present.
func localFileName(fileID, fileType string) string {
	if fileType == "" || fileType == MediaKindFile || fileType == MediaKindImage {
		return fileID
	}
	return fileID + "." + fileType
}
