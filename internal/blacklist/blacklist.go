package blacklist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Checker looks candidate field values up in per-field deny files.
// Each field name maps to <dir>/<field>.txt with one disallowed literal
// per line. Files are re-read on every check so edits take effect without
// a restart; a missing file means an empty list.
type Checker struct {
	dir string
}

func New(dir string) *Checker {
	return &Checker{dir: dir}
}

// IsBlacklisted reports whether the normalized string form of value is
// listed for the given field.
func (c *Checker) IsBlacklisted(field string, value any) (bool, error) {
	f, err := os.Open(filepath.Join(c.dir, field+".txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open blacklist for %s: %w", field, err)
	}
	defer f.Close()

	needle := fmt.Sprint(value)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == needle {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read blacklist for %s: %w", field, err)
	}
	return false, nil
}
