package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Removal is the result of deleting one file or directory.
type Removal struct {
	Path string
	Dir  bool
	Err  error
}

// String renders the removal the way it is written to prune.txt.
func (r Removal) String() string {
	kind := "file"
	if r.Dir {
		kind = "directory"
	}
	if r.Err != nil {
		return fmt.Sprintf("Failure: did not delete %s %s (%v)", kind, r.Path, r.Err)
	}
	return fmt.Sprintf("Success: deleted %s %s", kind, r.Path)
}

// RemoveTree deletes target and everything beneath it, children before
// parents, and reports every file and directory it touched.
//
// target must lie strictly inside boundary. An empty target, the filesystem
// root, boundary itself or anything outside it is refused with
// ErrOutsideBoundary and nothing is removed. Symbolic links are removed as
// links; their destinations are never visited.
func RemoveTree(boundary, target string) []Removal {
	if err := checkBoundary(boundary, target); err != nil {
		return []Removal{{Path: target, Dir: true, Err: err}}
	}
	return removeTree(filepath.Clean(target), nil)
}

func removeTree(dir string, out []Removal) []Removal {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
				out = removeTree(path, out)
				continue
			}
			out = append(out, remove(path, false))
		}
	}
	return append(out, remove(dir, true))
}

func remove(path string, dir bool) Removal {
	r := Removal{Path: path, Dir: dir}
	if err := os.Remove(path); err != nil {
		r.Err = NewDeletionError(path, dir, err)
	}
	return r
}

func checkBoundary(boundary, target string) error {
	if strings.TrimSpace(target) == "" || strings.TrimSpace(boundary) == "" {
		return fmt.Errorf("%w: empty path", ErrOutsideBoundary)
	}

	t := filepath.Clean(target)
	b := filepath.Clean(boundary)
	if t == string(filepath.Separator) || t == "." || t == filepath.VolumeName(t)+string(filepath.Separator) {
		return fmt.Errorf("%w: refusing to delete %s", ErrOutsideBoundary, t)
	}

	rel, err := filepath.Rel(b, t)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is not inside %s", ErrOutsideBoundary, t, b)
	}
	return nil
}
