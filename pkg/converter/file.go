package converter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dskvich/sticker-pack-bot/pkg/logger"
)

// writeAtomic writes dst through a uniquely named sibling and renames it into place,
// so a concurrent reader sees either no file or the complete one.
func writeAtomic(dst string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory for '%s': %w", dst, err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", dst, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving converted image into place: %w", err)
	}
	return nil
}

func removeSource(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("Unable to remove downloaded sticker", "path", path, logger.Err(err))
	}
}
