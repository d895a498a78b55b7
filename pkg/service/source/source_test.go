package source_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/service/source"
	"github.com/m-mizutani/gt"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755)).Required()
	gt.NoError(t, os.WriteFile(path, []byte(text), 0o644)).Required()
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b_第2回_20240102.txt"), "b")
	writeFile(t, filepath.Join(dir, "a_第1回_20240101.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "c_第3回_20240103.TXT"), "c")
	writeFile(t, filepath.Join(dir, "notes.md"), "skip")
	writeFile(t, filepath.Join(dir, ".hidden", "d_第4回_20240104.txt"), "skip")

	paths, err := source.Find(dir)
	gt.NoError(t, err).Required()
	gt.Value(t, paths).Equal([]string{
		filepath.Join(dir, "a_第1回_20240101.txt"),
		filepath.Join(dir, "b_第2回_20240102.txt"),
		filepath.Join(dir, "sub", "c_第3回_20240103.TXT"),
	})

	single, err := source.Find(paths[0])
	gt.NoError(t, err).Required()
	gt.A(t, single).Length(1)

	_, err = source.Find(filepath.Join(dir, "missing"))
	gt.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "予算会議_第3回_20240401_議事録.txt")
	writeFile(t, path, "本日の議題は予算です。")
	doc, err := source.Load(path)
	gt.NoError(t, err).Required()
	gt.Value(t, doc.ID.Key()).Equal("予算会議_第03回_20240401_議事録")
	gt.Value(t, doc.Source).Equal("予算会議_第3回_20240401_議事録.txt")

	bad := filepath.Join(dir, "agenda.txt")
	writeFile(t, bad, "text")
	_, err = source.Load(bad)
	gt.Bool(t, errors.Is(err, model.ErrInvalidFilename)).True()

	empty := filepath.Join(dir, "会議_第1回_20240101.txt")
	writeFile(t, empty, "  \n")
	_, err = source.Load(empty)
	gt.Bool(t, errors.Is(err, model.ErrEmptyText)).True()
}

func TestDirsSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"a/b", ".git/objects", "c"} {
		gt.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755)).Required()
	}

	dirs, err := source.Dirs(dir)
	gt.NoError(t, err).Required()
	gt.A(t, dirs).Length(4)
	gt.Value(t, dirs[0]).Equal(dir)
	for _, d := range dirs {
		gt.Bool(t, strings.Contains(d, ".git")).False()
	}
}
