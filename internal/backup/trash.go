package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Trash moves files into a trash directory instead of deleting them, so
// history can bring them back.
type Trash struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

func NewTrash(dir string, log *zap.Logger) *Trash {
	return &Trash{dir: dir, log: log, now: time.Now}
}

func (t *Trash) Dir() string { return t.dir }

// SafeDelete moves path to <trash>/<unix-nanos>-<name> and returns the new
// location. A missing path is not an error and yields "".
func (t *Trash) SafeDelete(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("create trash dir: %w", err)
	}
	dest := filepath.Join(t.dir, fmt.Sprintf("%d-%s", t.now().UnixNano(), filepath.Base(path)))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("safe delete %s: %w", path, err)
	}
	t.log.Debug("safe deleted file", zap.String("path", path), zap.String("backup", dest))
	return dest, nil
}

// Restore moves a backup back to dest. Whatever currently sits at dest is
// safe-deleted first.
func (t *Trash) Restore(backup, dest string) error {
	if _, err := os.Stat(backup); err != nil {
		return fmt.Errorf("restore %s: %w", backup, err)
	}
	if _, err := t.SafeDelete(dest); err != nil {
		return fmt.Errorf("restore %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("restore %s: %w", dest, err)
	}
	if err := os.Rename(backup, dest); err != nil {
		return fmt.Errorf("restore %s: %w", dest, err)
	}
	t.log.Debug("restored file", zap.String("backup", backup), zap.String("path", dest))
	return nil
}
