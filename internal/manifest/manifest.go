// Package manifest describes a finished build: the build-manifest.json
// written next to the outputs, the HTML index of the output directory, and
// the listing page the dev server shows at "/".
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/sitecycle/internal/build"
	"github.com/conneroisu/sitecycle/internal/errors"
)

const (
	// FileName is the JSON manifest written into the output directory.
	FileName = "build-manifest.json"
	// IndexName is the HTML index written into the output directory.
	IndexName = "index.html"
)

// File is one bundler output.
type File struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Group is a set of outputs of one language.
type Group struct {
	Files []File `json:"files"`
}

// DistFile is one file found in the output directory.
type DistFile struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified string `json:"lastModified"`
}

// Manifest is the content of build-manifest.json.
type Manifest struct {
	Timestamp  string     `json:"timestamp"`
	JavaScript Group      `json:"javascript"`
	CSS        Group      `json:"css"`
	DistFiles  []DistFile `json:"distFiles"`
}

// Generate builds the manifest for result, listing everything currently in
// outDir except the manifest files themselves.
func Generate(result *build.Result, outDir string, now time.Time) (*Manifest, error) {
	m := &Manifest{
		Timestamp:  now.UTC().Format(time.RFC3339),
		JavaScript: Group{Files: []File{}},
		CSS:        Group{Files: []File{}},
		DistFiles:  []DistFile{},
	}

	for _, o := range result.Outputs {
		f := File{Path: o.Path, Size: o.Size, Type: string(o.Kind)}
		switch {
		case o.Kind == build.KindScript || strings.HasSuffix(o.Path, ".js.map"):
			m.JavaScript.Files = append(m.JavaScript.Files, f)
		case o.Kind == build.KindStyle || strings.HasSuffix(o.Path, ".css.map"):
			m.CSS.Files = append(m.CSS.Files, f)
		}
	}

	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == FileName || rel == IndexName {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		m.DistFiles = append(m.DistFiles, DistFile{
			Path:         rel,
			Size:         info.Size(),
			Type:         strings.TrimPrefix(filepath.Ext(rel), "."),
			LastModified: info.ModTime().UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "failed to scan output directory")
	}

	return m, nil
}

// JSON returns the indented manifest.
func (m *Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Save writes build-manifest.json and index.html into outDir. baseURL, when
// set, adds deployed links next to each file.
func Save(outDir string, m *Manifest, baseURL string) error {
	data, err := m.JSON()
	if err != nil {
		return errors.WrapBuild(err, errors.ErrCodeWriteOutput, "failed to encode manifest")
	}
	if err := os.WriteFile(filepath.Join(outDir, FileName), data, 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteOutput, "failed to write manifest")
	}

	var buf bytes.Buffer
	if err := IndexPage(m, string(data), baseURL).Render(context.Background(), &buf); err != nil {
		return errors.WrapBuild(err, errors.ErrCodeWriteOutput, "failed to render manifest page")
	}
	if err := os.WriteFile(filepath.Join(outDir, IndexName), buf.Bytes(), 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteOutput, "failed to write manifest page")
	}
	return nil
}
