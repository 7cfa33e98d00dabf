package build

import (
	"os"
	"path/filepath"

	"github.com/conneroisu/sitecycle/internal/errors"
)

type staged struct {
	tmp, dest string
}

// Write stores every output under outDir, creating directories as needed.
// Every file is staged next to its destination before any is replaced, so
// a failure while writing leaves the previous build's files untouched.
// Existing files not produced by this build are left in place.
func (r *Result) Write(outDir string) error {
	dests := make([]string, len(r.Outputs))
	for i, o := range r.Outputs {
		dest := filepath.Join(outDir, filepath.FromSlash(o.Path))
		if rel, err := filepath.Rel(outDir, dest); err != nil || !filepath.IsLocal(rel) {
			return errors.ErrInvalidPath(o.Path)
		}
		dests[i] = dest
	}

	files := make([]staged, 0, len(r.Outputs))
	discard := func() {
		for _, f := range files {
			_ = os.Remove(f.tmp)
		}
	}

	for i, o := range r.Outputs {
		tmp, err := stage(dests[i], o.Contents)
		if err != nil {
			discard()
			return errors.WrapIO(err, errors.ErrCodeWriteOutput, "failed to write output").
				WithContext("path", o.Path)
		}
		files = append(files, staged{tmp: tmp, dest: dests[i]})
	}

	for i, f := range files {
		if err := os.Rename(f.tmp, f.dest); err != nil {
			files = files[i:]
			discard()
			return errors.WrapIO(err, errors.ErrCodeWriteOutput, "failed to replace output").
				WithContext("path", r.Outputs[i].Path)
		}
	}
	return nil
}

// stage writes data to a temporary file in dest's directory.
func stage(dest string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
