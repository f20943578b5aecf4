package yarrd

import (
	"fmt"
	"os"

	"github.com/lindeneg/yarrd/internal/xerr"
)

func renameFile(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, xerr.IO)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, xerr.IO)
	}
	return nil
}
