package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const pngExt = ".png"

// ImageCache is a directory of converted stickers named <file_id>.png. An entry exists
// only once its conversion succeeded; nothing is evicted automatically.
type ImageCache struct {
	dir string
}

func New(dir string) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory '%s': %w", dir, err)
	}
	return &ImageCache{dir: dir}, nil
}

func (c *ImageCache) Path(fileID string) string {
	return filepath.Join(c.dir, filepath.Base(fileID)+pngExt)
}

func (c *ImageCache) Has(fileID string) bool {
	info, err := os.Stat(c.Path(fileID))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the entry for fileID. A missing entry is not an error.
func (c *ImageCache) Remove(fileID string) error {
	if err := os.Remove(c.Path(fileID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cached image: %w", err)
	}
	return nil
}
