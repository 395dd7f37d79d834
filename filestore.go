package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps uploaded media on local disk under a root directory and
// serves it back over /media. Each stored file lives in its own
// <field>/<ulid>/ directory so original filenames never collide.
type FileStore struct {
	root    string
	baseURL string
}

func newFileStore(root, baseURL string) *FileStore {
	return &FileStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Save writes content under the given field and returns the relative path
// recorded in the database.
func (fs *FileStore) Save(field, name string, content []byte) (string, error) {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errValidation("bad file name")
	}
	rel := filepath.Join(field, newULID(), name)
	abs := filepath.Join(fs.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("error MkdirAll for media file: %w", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return "", fmt.Errorf("error WriteFile for media file: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// Remove deletes a stored file. A missing file is not an error: rows may
// outlive their media after manual cleanup.
func (fs *FileStore) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(filepath.Join(fs.root, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error Remove media file: %w", err)
	}
	return nil
}

// Clone reads back the bytes of a stored file together with its original
// name. An empty reference or an unreadable file yields (nil, ""), letting
// promotions proceed without the media.
func (fs *FileStore) Clone(rel string) ([]byte, string) {
	if rel == "" {
		return nil, ""
	}
	content, err := os.ReadFile(filepath.Join(fs.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, ""
	}
	return content, filepath.Base(filepath.FromSlash(rel))
}

// URL renders the absolute URL a stored path is served from, or nil when no
// file is attached.
func (fs *FileStore) URL(rel string) *string {
	if rel == "" {
		return nil
	}
	u := fs.baseURL + "/media/" + rel
	return &u
}
