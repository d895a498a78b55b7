package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// Extension of meeting text files
const Extension = ".txt"

// IsText reports whether path names a meeting text file
func IsText(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), Extension) && !strings.HasPrefix(base, ".")
}

// Find returns the text files under root, sorted by path. root may also be a single file.
func Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat input", goerr.V("path", root))
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsText(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to walk input directory", goerr.V("path", root))
	}

	sort.Strings(paths)
	return paths, nil
}

// Dirs returns root and every directory below it that Find descends into
func Dirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to walk input directory", goerr.V("path", root))
	}
	return dirs, nil
}

// Load reads path and builds a document identified by its file name
func Load(path string) (*model.Document, error) {
	id, err := model.ParseDocumentID(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read document", goerr.V(model.SourceKey, path))
	}

	return model.NewDocument(id, string(data), filepath.Base(path))
}
