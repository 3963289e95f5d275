package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/JonMunkholm/RiskTracker/internal/application"
	"github.com/JonMunkholm/RiskTracker/internal/config"
	"github.com/JonMunkholm/RiskTracker/internal/core"
	"github.com/JonMunkholm/RiskTracker/internal/database"
	"github.com/JonMunkholm/RiskTracker/internal/logging"
)

// globals are the root flags plus the configuration resolved in Before.
type globals struct {
	databaseURL string
	logLevel    string
	logFormat   string

	cfg *config.Config
}

func newApp() *cli.Command {
	g := &globals{}

	return &cli.Command{
		Name:  "riskctl",
		Usage: "Operate the cybersecurity risk assessment tracker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "database-url",
				Usage:       "Store URL (postgres://, sqlite://, memory://); overrides DATABASE_URL",
				Destination: &g.databaseURL,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level: debug, info, warn, error; overrides LOG_LEVEL",
				Destination: &g.logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format: text or json; overrides LOG_FORMAT",
				Destination: &g.logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := application.LoadConfig()
			if err != nil {
				return ctx, err
			}
			if g.databaseURL != "" {
				cfg.Database.URL = g.databaseURL
			}
			if g.logLevel != "" {
				cfg.Logging.Level = g.logLevel
			}
			if g.logFormat != "" {
				cfg.Logging.Format = g.logFormat
			}
			if err := cfg.Validate(); err != nil {
				return ctx, err
			}

			// Logs go to stderr so that stdout carries only command output.
			logging.SetupWriter(c.Root().ErrWriter, cfg.Logging.Level, cfg.Logging.Format)
			g.cfg = cfg
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdImport(g),
			cmdExport(g),
			cmdReport(g),
			cmdStats(g),
			cmdMigrate(g),
			cmdServe(g),
		},
	}
}

// withApp opens the store for the duration of fn.
func (g *globals) withApp(ctx context.Context, fn func(*application.App) error) error {
	app, err := application.New(ctx, g.cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func cmdImport(g *globals) *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "import",
		Usage:     "Import risk template workbooks; directories import every .xlsx inside",
		ArgsUsage: "FILE|DIR [FILE|DIR...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Print import reports as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("import: at least one FILE is required")
			}
			files, err := expandPaths(c.Args().Slice())
			if err != nil {
				return err
			}

			return g.withApp(ctx, func(app *application.App) error {
				out := c.Root().Writer
				for _, path := range files {
					report, err := importFile(ctx, app.Service, path)
					if err != nil {
						return fmt.Errorf("%s: %s", path, core.FormatUserError(err))
					}
					if asJSON {
						enc := json.NewEncoder(out)
						enc.SetIndent("", "  ")
						if err := enc.Encode(report); err != nil {
							return err
						}
						continue
					}
					printReport(out, path, report)
				}
				return nil
			})
		},
	}
}

// expandPaths replaces each directory with the .xlsx files it contains, in
// name order. Office lock files (~$name.xlsx) are skipped.
func expandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
				continue
			}
			found = append(found, filepath.Join(arg, name))
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%s: no .xlsx files", arg)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func importFile(ctx context.Context, svc *core.Service, path string) (*core.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return svc.Import(ctx, f)
}

func printReport(w io.Writer, path string, r *core.ImportReport) {
	fmt.Fprintf(w, "%s: import %s (%s)\n", path, r.ImportID, r.Duration.Round(1e6))
	fmt.Fprintf(w, "  assets created:      %d\n", r.AssetsCreated)
	fmt.Fprintf(w, "  controls created:    %d\n", r.ControlsCreated)
	fmt.Fprintf(w, "  risk items created:  %d\n", r.AssessmentsCreated)
	fmt.Fprintf(w, "  risk items matched:  %d\n", r.AssessmentsMatched)
	fmt.Fprintf(w, "  rows skipped:        %d\n", r.RowsSkipped)
	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(w, "    %s row %d (%s): %s\n", e.Sheet, e.Row, e.Field, e.Message)
		} else {
			fmt.Fprintf(w, "    %s row %d: %s\n", e.Sheet, e.Row, e.Message)
		}
	}
}

// filterFlags binds the register filter to command flags.
type filterFlags struct {
	status   string
	asset    int64
	severity string
	stride   string
	rating   string
	search   string
}

func (f *filterFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "status", Usage: "Review status (Pending, In-Review, Reviewed, Approved)", Destination: &f.status},
		&cli.Int64Flag{Name: "asset", Usage: "Asset ID", Destination: &f.asset},
		&cli.StringFlag{Name: "severity", Usage: "Severity text, e.g. \"4 - CRITICAL\"", Destination: &f.severity},
		&cli.StringFlag{Name: "stride", Usage: "STRIDE-L code", Destination: &f.stride},
		&cli.StringFlag{Name: "rating", Usage: "Post-mitigation risk rating", Destination: &f.rating},
		&cli.StringFlag{Name: "search", Usage: "Substring of asset, threat, finding or notes", Destination: &f.search},
	}
}

func (f *filterFlags) filter() core.RiskFilter {
	return core.RiskFilter{
		Status:         core.ReviewStatus(f.status),
		AssetID:        f.asset,
		Severity:       f.severity,
		StrideCode:     f.stride,
		PostRiskRating: f.rating,
		Search:         f.search,
	}
}

// exportCommand builds the export and report commands, which differ only in
// the rendering function.
func exportCommand(g *globals, name, usage string, render func(*core.Service) func(context.Context, core.RiskFilter, io.Writer) error) *cli.Command {
	var (
		out string
		ff  filterFlags
	)
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "Output file",
			Required:    true,
			Destination: &out,
		},
	}
	flags = append(flags, ff.flags()...)

	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withApp(ctx, func(app *application.App) error {
				if err := writeFile(out, func(w io.Writer) error {
					return render(app.Service)(ctx, ff.filter(), w)
				}); err != nil {
					return fmt.Errorf("%s: %s", name, core.FormatUserError(err))
				}
				fmt.Fprintf(c.Root().Writer, "wrote %s\n", out)
				return nil
			})
		},
	}
}

func cmdExport(g *globals) *cli.Command {
	return exportCommand(g, "export", "Export the register as a workbook that re-imports cleanly",
		func(s *core.Service) func(context.Context, core.RiskFilter, io.Writer) error { return s.Export })
}

func cmdReport(g *globals) *cli.Command {
	return exportCommand(g, "report", "Render the register as a PDF report",
		func(s *core.Service) func(context.Context, core.RiskFilter, io.Writer) error { return s.ExportReport })
}

// writeFile writes path through fn and removes the partial file on failure.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return fn(f)
}

func cmdStats(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print review progress",
		Action: func(ctx context.Context, c *cli.Command) error {
			return g.withApp(ctx, func(app *application.App) error {
				st, err := app.Service.Stats(ctx)
				if err != nil {
					return err
				}
				w := c.Root().Writer
				fmt.Fprintf(w, "risk items: %d  assets: %d  controls: %d\n", st.TotalRisks, st.TotalAssets, st.TotalControls)
				fmt.Fprintf(w, "progress:   %.1f%% reviewed or approved\n", st.ProgressPercent)
				for _, s := range core.ReviewStatuses {
					fmt.Fprintf(w, "  %-10s %d\n", s, st.ByStatus[string(s)])
				}
				return nil
			})
		},
	}
}

func cmdMigrate(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := g.cfg.Database
			cfg.Migrate = false
			store, err := database.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := database.Migrate(ctx, store); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "schema applied (%s)\n", cfg.Scheme())
			return nil
		},
	}
}

func cmdServe(g *globals) *cli.Command {
	var port int

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "port",
				Usage:       "Listen port; overrides SERVER_PORT",
				Destination: &port,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if port > 0 {
				g.cfg.Server.Port = port
			}
			return g.withApp(ctx, func(app *application.App) error {
				return app.Serve(ctx)
			})
		},
	}
}
