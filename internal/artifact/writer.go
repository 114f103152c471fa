package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"basegraph.app/refactor/common"
)

// Writer stores final diffs as plain-text files under Dir.
type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Path returns <Dir>/<slug of fileName's base>.<batchID>.diff.
func (w *Writer) Path(batchID, fileName string) string {
	base, err := common.Slugify(filepath.Base(fileName), "file")
	if err != nil {
		base = "file"
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s.diff", base, batchID))
}

// Write saves diff and returns the path written. An empty diff still produces
// a file so every batch leaves an artifact.
func (w *Writer) Write(batchID, fileName, diff string) (string, error) {
	if strings.TrimSpace(batchID) == "" {
		return "", fmt.Errorf("write artifact: empty batch id")
	}

	path := w.Path(batchID, fileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(diff), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return path, nil
}
