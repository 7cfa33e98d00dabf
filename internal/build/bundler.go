// Package build bundles the site's script and style entry points with
// esbuild and produces the in-memory output set the dev server serves and
// the build command writes.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/sitecycle/internal/config"
	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
)

// Kind classifies an output file.
type Kind string

const (
	KindScript Kind = "script"
	KindStyle  Kind = "style"
	KindMap    Kind = "map"
	KindAsset  Kind = "asset"
)

// KindOf classifies path by extension.
func KindOf(path string) Kind {
	switch {
	case strings.HasSuffix(path, ".map"):
		return KindMap
	case strings.HasSuffix(path, ".js"):
		return KindScript
	case strings.HasSuffix(path, ".css"):
		return KindStyle
	default:
		return KindAsset
	}
}

// Output is one emitted file. Path is slash-separated and relative to the
// output directory.
type Output struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Kind     Kind   `json:"type"`
	Contents []byte `json:"-"`
}

// Result is the output of one successful build.
type Result struct {
	Outputs  []Output
	Entries  []string
	Warnings []string
	Duration time.Duration
}

// Scripts returns the script outputs.
func (r *Result) Scripts() []Output { return r.filter(KindScript) }

// Styles returns the style outputs.
func (r *Result) Styles() []Output { return r.filter(KindStyle) }

// Maps returns the source-map outputs.
func (r *Result) Maps() []Output { return r.filter(KindMap) }

func (r *Result) filter(kind Kind) []Output {
	var out []Output
	for _, o := range r.Outputs {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// Lookup returns the output at the slash-separated relative path.
func (r *Result) Lookup(path string) (Output, bool) {
	path = strings.TrimPrefix(path, "/")
	for _, o := range r.Outputs {
		if o.Path == path {
			return o, true
		}
	}
	return Output{}, false
}

// Bundler runs esbuild over the configured entry points.
type Bundler struct {
	cfg        config.BuildConfig
	production bool
	baseURL    string
	reloadURL  string
	workDir    string
	logger     logging.Logger
	metrics    *BuildMetrics
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithWorkDir resolves relative paths against dir instead of the current
// directory.
func WithWorkDir(dir string) Option {
	return func(b *Bundler) {
		b.workDir = dir
	}
}

// WithLogger sets the bundler logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Bundler) {
		b.logger = l
	}
}

// WithMetrics records every build into m.
func WithMetrics(m *BuildMetrics) Option {
	return func(b *Bundler) {
		b.metrics = m
	}
}

// NewBundler creates a bundler for cfg. Outside production every script
// output gets the reload client appended.
func NewBundler(cfg *config.Config, opts ...Option) *Bundler {
	b := &Bundler{
		cfg:        cfg.Build,
		production: cfg.Site.Production,
		baseURL:    cfg.Site.BaseURL,
		logger:     logging.Nop(),
		metrics:    NewBuildMetrics(),
	}
	if !cfg.Site.Production {
		b.reloadURL = cfg.Server.ReloadURL()
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("build")
	return b
}

// Metrics returns the build counters.
func (b *Bundler) Metrics() *BuildMetrics {
	return b.metrics
}

// OutDir returns the absolute output directory.
func (b *Bundler) OutDir() (string, error) {
	return b.abs(b.cfg.OutDir)
}

func (b *Bundler) abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	base := b.workDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.WrapIO(err, errors.ErrCodeInternalError, "failed to resolve working directory")
		}
		base = wd
	}
	return filepath.Join(base, path), nil
}

// ResolveEntries returns the configured entries followed by every script in
// the pages directory, sorted. It is re-evaluated on every build so new pages
// are picked up.
func (b *Bundler) ResolveEntries() ([]string, error) {
	entries := b.cfg.Entries()
	if b.cfg.PagesDir == "" {
		return entries, nil
	}

	pagesDir, err := b.abs(b.cfg.PagesDir)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(pagesDir)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "failed to read pages directory")
	}

	var pages []string
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".js", ".ts":
			pages = append(pages, filepath.ToSlash(filepath.Join(b.cfg.PagesDir, e.Name())))
		}
	}
	sort.Strings(pages)

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[filepath.ToSlash(filepath.Clean(e))] = true
	}
	for _, p := range pages {
		if !seen[p] {
			entries = append(entries, p)
		}
	}
	return entries, nil
}

// Build bundles every entry point in memory. Nothing is written; call
// Result.Write after a successful build.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	op := logging.StartOperation(b.logger, "bundle")
	start := time.Now()
	result, err := b.build(ctx)
	duration := time.Since(start)
	b.metrics.RecordBuild(duration, err)

	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	result.Duration = duration
	op.End(ctx, "outputs", len(result.Outputs), "warnings", len(result.Warnings))
	return result, nil
}

func (b *Bundler) build(ctx context.Context) (*Result, error) {
	entries, err := b.ResolveEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NewBuildError(errors.ErrCodeNoEntryPoints, "no entry points configured", nil)
	}

	workDir, err := b.abs(".")
	if err != nil {
		return nil, err
	}
	outDir, err := b.OutDir()
	if err != nil {
		return nil, err
	}
	srcDir, err := b.abs(b.cfg.SrcDir)
	if err != nil {
		return nil, err
	}

	buildCtx, ctxErr := api.Context(b.options(entries, workDir, srcDir, outDir))
	if ctxErr != nil {
		return nil, buildError(ctxErr.Errors)
	}
	defer buildCtx.Dispose()

	stop := context.AfterFunc(ctx, buildCtx.Cancel)
	defer stop()

	res := buildCtx.Rebuild()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, buildError(res.Errors)
	}

	result := &Result{
		Entries:  entries,
		Warnings: api.FormatMessages(res.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}),
	}
	for _, f := range res.OutputFiles {
		rel, err := filepath.Rel(outDir, f.Path)
		if err != nil {
			return nil, errors.WrapBuild(err, errors.ErrCodeBuildFailed, "output escaped the output directory")
		}
		rel = filepath.ToSlash(rel)

		contents := f.Contents
		kind := KindOf(rel)
		if kind == KindScript && b.reloadURL != "" {
			contents = AppendReloadClient(contents, b.reloadURL)
		}
		result.Outputs = append(result.Outputs, Output{
			Path:     rel,
			Size:     int64(len(contents)),
			Kind:     kind,
			Contents: contents,
		})
	}
	sort.Slice(result.Outputs, func(i, j int) bool {
		return result.Outputs[i].Path < result.Outputs[j].Path
	})

	for _, w := range result.Warnings {
		b.logger.Warn(ctx, nil, "bundler warning", "message", strings.TrimSpace(w))
	}
	return result, nil
}

func (b *Bundler) options(entries []string, workDir, srcDir, outDir string) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints:   entries,
		AbsWorkingDir: workDir,
		Outdir:        outDir,
		Outbase:       srcDir,
		Bundle:        true,
		Write:         false,
		Platform:      api.PlatformBrowser,
		Target:        parseTarget(b.cfg.Target),
		LogLevel:      api.LogLevelSilent,
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", b.nodeEnv()),
			"process.env.SITE_URL": fmt.Sprintf("%q", b.baseURL),
		},
	}
	if b.cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapExternal
	}
	if b.production {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	return opts
}

func (b *Bundler) nodeEnv() string {
	if b.production {
		return "production"
	}
	return "development"
}

func parseTarget(target string) api.Target {
	switch strings.ToLower(target) {
	case "es2015":
		return api.ES2015
	case "es2016":
		return api.ES2016
	case "es2017":
		return api.ES2017
	case "es2018":
		return api.ES2018
	case "es2019":
		return api.ES2019
	case "es2020":
		return api.ES2020
	case "es2021":
		return api.ES2021
	case "es2022":
		return api.ES2022
	case "es2023":
		return api.ES2023
	default:
		return api.ESNext
	}
}

func buildError(msgs []api.Message) error {
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage})
	err := errors.ErrBuildFailed(fmt.Errorf("%s", strings.TrimSpace(strings.Join(formatted, "\n"))))
	if len(msgs) > 0 && msgs[0].Location != nil {
		loc := msgs[0].Location
		err = err.WithLocation(loc.File, loc.Line, loc.Column)
	}
	return err.WithContext("errors", len(msgs))
}
