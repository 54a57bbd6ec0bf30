// Package assets materializes gift media documents into servable asset
// files, either on the local filesystem or in S3-compatible object storage.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage abstracts where materialized asset files live.
type Storage interface {
	// Exists reports whether an asset with the given name is already stored.
	Exists(ctx context.Context, name string) (bool, error)
	// Get returns the stored bytes of an asset.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put stores an asset, replacing any previous content.
	Put(ctx context.Context, name string, data []byte, contentType string) error
	// URL returns the public URL under which the asset is served.
	URL(name string) string
}

type fsStorage struct {
	dir           string
	publicBaseURL string
}

// NewFSStorage creates filesystem backed asset storage rooted at dir.
func NewFSStorage(dir, publicBaseURL string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	return &fsStorage{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *fsStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat asset %s: %w", name, err)
}

func (s *fsStorage) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", name, err)
	}
	return data, nil
}

func (s *fsStorage) Put(_ context.Context, name string, data []byte, _ string) error {
	path := filepath.Join(s.dir, name)

	// Write via a temp file so readers never see a partial asset.
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp asset file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing asset %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing asset %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming asset %s: %w", name, err)
	}
	return nil
}

func (s *fsStorage) URL(name string) string {
	return s.publicBaseURL + "/" + name
}
