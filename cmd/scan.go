package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitecycle/internal/config"
	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/modules"
	"github.com/conneroisu/sitecycle/internal/modules/builtin"
	"github.com/conneroisu/sitecycle/internal/pages"
)

var scanCmd = &cobra.Command{
	Use:   "scan [page.html...]",
	Short: "Report the module bindings of HTML pages",
	Long: `Parse HTML pages and list every data-module and data-cycle element, the
identifier it names and whether that identifier resolves against the
built-in module catalogue. Without arguments every .html file under the
source directory is scanned.

With --mount each page is also mounted and torn down once with the
built-in units, using the modules section of the configuration. Units
that fail to construct are logged as warnings.

Examples:
  sitecycle scan
  sitecycle scan public/index.html --format json
  sitecycle scan --strict          # exit non-zero on unresolved bindings
  sitecycle scan --mount           # also mount each page once`,
	RunE: runScan,
}

var (
	scanFormat string
	scanStrict bool
	scanMount  bool
)

// mountTimeout bounds the page-out animations run while unmounting a page.
const mountTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json, yaml)")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "Fail when a binding does not resolve")
	scanCmd.Flags().BoolVar(&scanMount, "mount", false, "Mount each page once and report its instance count")
}

// PageBindings is the scan report for one page.
type PageBindings struct {
	Page     string             `json:"page" yaml:"page"`
	Bindings []modules.Binding `json:"bindings" yaml:"bindings"`
	// Instances is the number of class-style instances created when the
	// page was mounted; nil without --mount.
	Instances *int `json:"instances,omitempty" yaml:"instances,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths, err = findPages(cfg.Build.SrcDir)
		if err != nil {
			return err
		}
	}

	logger := newLogger(cmd)
	catalog := builtin.Catalog()
	report := make([]PageBindings, 0, len(paths))
	unresolved := 0
	for _, page := range paths {
		pb, doc, err := scanPage(catalog, page, cfg.Modules.Attribute, cfg.Modules.CycleAttribute)
		if err != nil {
			return err
		}
		if scanMount {
			n, err := mountPage(cmd.Context(), catalog, cfg.Modules, logger.With("page", page), doc)
			if err != nil {
				return fmt.Errorf("failed to mount %s: %w", page, err)
			}
			pb.Instances = &n
		}
		for _, b := range pb.Bindings {
			if !b.Resolved {
				unresolved++
			}
		}
		report = append(report, pb)
	}

	if err := printScan(cmd, report); err != nil {
		return err
	}
	if scanStrict && unresolved > 0 {
		return errors.NewResolveError(errors.ErrCodeModuleNotFound,
			fmt.Sprintf("%d binding(s) do not resolve", unresolved), nil)
	}
	return nil
}

func findPages(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && (d.Name() == "node_modules" || d.Name() == ".git") {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".html" {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find pages under %s: %w", root, err)
	}
	return found, nil
}

func scanPage(catalog *modules.Catalog, page string, attributes ...string) (PageBindings, *dom.Document, error) {
	f, err := os.Open(page)
	if err != nil {
		return PageBindings{}, nil, errors.NewIOError(errors.ErrCodeFileNotFound, "failed to open page", err).
			WithLocation(page, 0, 0)
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return PageBindings{}, nil, fmt.Errorf("failed to parse %s: %w", page, err)
	}

	pb := PageBindings{Page: page, Bindings: []modules.Binding{}}
	for _, attr := range attributes {
		pb.Bindings = append(pb.Bindings, modules.Bindings(catalog, doc, attr)...)
	}
	return pb, doc, nil
}

// mountPage starts doc in a fresh application root, then transitions to an
// empty page so every page-out and destroy hook runs once.
func mountPage(ctx context.Context, catalog *modules.Catalog, mc config.ModulesConfig, logger logging.Logger, doc *dom.Document) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, mountTimeout)
	defer cancel()

	opts := pages.OptionsFromConfig(mc)
	opts.Logger = logger
	app := pages.New(catalog, opts)

	if err := app.Start(ctx, doc); err != nil {
		return 0, err
	}
	n := len(app.Instances())

	blank, err := dom.ParseString("")
	if err != nil {
		return 0, err
	}
	if err := app.Transition(ctx, blank); err != nil {
		return 0, err
	}
	return n, nil
}

func printScan(cmd *cobra.Command, report []PageBindings) error {
	out := cmd.OutOrStdout()
	switch scanFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PAGE\tELEMENT\tATTRIBUTE\tID\tKIND\tRESOLVED")
		for _, pb := range report {
			for _, b := range pb.Bindings {
				kind := b.Kind
				if kind == "" {
					kind = "-"
				}
				fmt.Fprintf(w, "%s\t%s\tdata-%s\t%s\t%s\t%t\n", pb.Page, b.Element, b.Attribute, b.ID, kind, b.Resolved)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, pb := range report {
			if pb.Instances != nil {
				fmt.Fprintf(out, "%s: %d instance(s) mounted\n", pb.Page, *pb.Instances)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", scanFormat)
	}
}
