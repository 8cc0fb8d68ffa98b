package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

const imagesDir = "images"

// imageDir keeps image bytes as plain files. Both store backends use it.
type imageDir struct {
	root string
}

func (d imageDir) ImagePath(filename string) (string, error) {
	if !validFilename(filename) {
		return "", eris.Errorf("store: invalid image filename %q", filename)
	}
	return filepath.Join(d.root, filename), nil
}

func (d imageDir) SaveImage(_ context.Context, filename string, data []byte) error {
	path, err := d.ImagePath(filename)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (d imageDir) ReadImage(_ context.Context, filename string) ([]byte, error) {
	path, err := d.ImagePath(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "image %s", filename)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read image %s", filename)
	}
	return data, nil
}

func (d imageDir) migrate() error {
	return eris.Wrap(os.MkdirAll(d.root, 0o755), "store: create image dir")
}

// validFilename rejects anything that could escape the image directory.
func validFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// filePerm is the mode of every record and image file.
const filePerm = 0o644

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "store: create temp for %s", filepath.Base(path))
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: chmod %s", filepath.Base(path))
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: write %s", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: close %s", filepath.Base(path))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: rename %s", filepath.Base(path))
	}
	return nil
}
