// Package cli implements the screeningstar operator command line: static
// schema migrations and the case reports, run directly against the
// configured backends.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/app"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/reporting"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Deps         Dependencies
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

type StatusReporter interface {
	Build(ctx context.Context, mode reporting.Mode) (*reporting.Tree, error)
}

type DelayReporter interface {
	Build(ctx context.Context, now time.Time) (*reporting.Tree, error)
}

// Backend is what the report commands run against. Close releases it.
type Backend struct {
	Status StatusReporter
	Delay  DelayReporter
	Close  func() error
}

// Migrator applies the static core schema.
type Migrator interface {
	Up(dsn string) error
	Down(dsn string, steps int) error
	Status(dsn string) (version uint, dirty bool, err error)
}

// Dependencies are the seams the commands reach the outside world through.
type Dependencies struct {
	LoadConfig  func(path string) (*config.Config, error)
	OpenBackend func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error)
	Migrator    Migrator
}

// DefaultDependencies wires the real config loader, container and migrator.
func DefaultDependencies() Dependencies {
	return Dependencies{
		LoadConfig:  initConfig,
		OpenBackend: openBackend,
		Migrator:    postgresMigrator{},
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error) {
	c, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Backend{Status: c.Status, Delay: c.Delay, Close: c.Close}, nil
}

type postgresMigrator struct{}

func (postgresMigrator) Up(dsn string) error { return postgres.RunMigrations(dsn) }
func (postgresMigrator) Down(dsn string, steps int) error {
	return postgres.RollbackMigration(dsn, steps)
}
func (postgresMigrator) Status(dsn string) (uint, bool, error) {
	return postgres.MigrationStatus(dsn)
}

// NewRootCommand creates the root command with its global flags and every
// subcommand.
func NewRootCommand(deps Dependencies) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "screeningstar",
		Short: "Screeningstar operator CLI",
		Long: "Operator tooling for the screening back office: apply the core schema\n" +
			"migrations and print the case completion and TAT delay reports.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, deps)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./screeningstar.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "overall command timeout")

	cmd.AddCommand(NewMigrateCmd(), NewReportCmd(), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print build information",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "screeningstar %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, deps Dependencies) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.InvalidParam("unsupported output format").WithDetail(opts.OutputFormat)
	}

	load := deps.LoadConfig
	if load == nil {
		load = initConfig
	}
	cfg, err := load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Deps:         deps,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		Timeout:      opts.Timeout,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads path when given, otherwise the first config file found
// on the search path, otherwise SCREENINGSTAR_* variables and defaults.
func initConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	searchPaths := []string{"./screeningstar.yaml", "./configs/config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".screeningstar", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/screeningstar/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger logs to stderr so stdout carries only command output.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLI context not initialized")
	}
	return cliCtx, nil
}

// Execute runs the CLI with the real dependencies.
func Execute() error {
	rootCmd := NewRootCommand(DefaultDependencies())
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// PrintResult writes data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}

	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// printTable falls back to text for data without table rows.
func printTable(cmd *cobra.Command, data interface{}) error {
	type tableProvider interface {
		TableHeaders() []string
		TableRows() [][]string
	}
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes err to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned plain-text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells func(i int) string) {
		var line strings.Builder
		for i := range headers {
			if i > 0 {
				line.WriteString("  ")
			}
			line.WriteString(padRight(cells(i), widths[i]))
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteString("\n")
	}

	writeRow(func(i int) string { return headers[i] })
	writeRow(func(i int) string { return strings.Repeat("-", widths[i]) })
	for _, row := range rows {
		writeRow(func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		})
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
