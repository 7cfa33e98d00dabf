package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitecycle/internal/build"
	"github.com/conneroisu/sitecycle/internal/config"
	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/manifest"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Bundle the site into the output directory",
	Long: `Bundle every script and style entry point, plus every page script in
the pages directory, then write the output directory together with
build-manifest.json and an index.html listing.

Nothing is written when the bundle fails, and the command exits non-zero.

Examples:
  sitecycle build                  # Development build
  sitecycle build --production     # Minified, no live-reload client
  NODE_ENV=production sitecycle build`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().Bool("production", false, "Minify and omit the live-reload client")
	buildCmd.Flags().StringP("out-dir", "o", "", "Output directory (default dist)")

	_ = viper.BindPFlag("site.production", buildCmd.Flags().Lookup("production"))
	_ = viper.BindPFlag("build.out_dir", buildCmd.Flags().Lookup("out-dir"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, outDir, err := buildSite(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, err, "build failed", errors.Fields(err)...)
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tSIZE")
	for _, o := range result.Outputs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Path, o.Kind, formatSize(o.Size))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nBuilt %d files into %s in %s\n",
		len(result.Outputs), outDir, result.Duration.Round(time.Millisecond))
	return nil
}

// buildSite runs one bundle and writes its output and manifest.
func buildSite(ctx context.Context, cfg *config.Config, logger logging.Logger) (*build.Result, string, error) {
	bundler := build.NewBundler(cfg, build.WithLogger(logger))

	result, err := bundler.Build(ctx)
	if err != nil {
		return nil, "", err
	}
	outDir, err := bundler.OutDir()
	if err != nil {
		return nil, "", err
	}
	if err := result.Write(outDir); err != nil {
		return nil, "", err
	}

	m, err := manifest.Generate(result, outDir, time.Now())
	if err != nil {
		return nil, "", err
	}
	if err := manifest.Save(outDir, m, cfg.Site.BaseURL); err != nil {
		return nil, "", err
	}
	return result, outDir, nil
}

func formatSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.2f KB", float64(n)/1024)
}
