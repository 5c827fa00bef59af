package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrPathOutsideRoot = errors.New("path escapes workspace root")

type ListFilesInput struct {
	Path    string `json:"path,omitempty" jsonschema_description:"Directory to list, relative to the workspace root. Defaults to the root."`
	Pattern string `json:"pattern,omitempty" jsonschema_description:"Optional glob, e.g. '**/*.go'. When set, matching paths under the directory are returned recursively."`
}

// Files lists files below a fixed root directory.
type Files struct {
	FS fs.FS
}

func NewFiles(root string) *Files {
	return &Files{FS: os.DirFS(root)}
}

// ListFiles returns the entries of a directory, directories suffixed with
// "/", or the paths matching a glob when a pattern is given. Results are sorted.
func (f *Files) ListFiles(ctx context.Context, input ListFilesInput) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := path.Clean(input.Path)
	if dir == "" || dir == "/" {
		dir = "."
	}
	if !fs.ValidPath(dir) {
		return nil, fmt.Errorf("%w: %q", ErrPathOutsideRoot, input.Path)
	}

	if input.Pattern != "" {
		pattern := path.Join(dir, input.Pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", input.Pattern)
		}
		matches, err := doublestar.Glob(f.FS, pattern)
		if err != nil {
			return nil, err
		}
		slices.Sort(matches)
		return matches, nil
	}

	entries, err := fs.ReadDir(f.FS, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}
