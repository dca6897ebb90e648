// Package cmd implements the geopulse command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/geopulse-companion/internal/app"
	"github.com/pkordes/geopulse-companion/internal/config"
	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/style"
)

// Command groups
const (
	GroupSession = "session"
	GroupData    = "data"
	GroupLocal   = "local"
)

// noAppAnnotation marks commands that work offline without configuration.
const noAppAnnotation = "geopulse/no-app"

var errNotLoggedIn = errors.New("not logged in: run 'geopulse login' first")

var rootCmd = &cobra.Command{
	Use:   "geopulse",
	Short: "Command-line companion for a GeoPulse server",
	Long: `geopulse talks to a GeoPulse location-tracking server on your behalf.

The session is kept between runs in the configured storage backend, so
'geopulse login' once and later commands reuse it until it expires.

Configuration comes from the environment (GEOPULSE_API_URL, STORAGE_DRIVER,
STORAGE_PATH, DATABASE_URL, LOG_LEVEL) or a TOML file named by
GEOPULSE_CONFIG. Flags override both.

Examples:
  geopulse login --email ada@example.com --password-stdin < pw.txt
  geopulse whoami
  geopulse tags match --start 2025-06-01T10:00:00Z
  geopulse photos group photos.json
  geopulse coverage summary --grid 250`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: openApp,
}

var (
	apiURLFlag      string // --api-url: overrides GEOPULSE_API_URL
	storageFlag     string // --storage: storage driver
	storagePathFlag string // --storage-path: file or database path
	logLevelFlag    string // --log-level: stderr log level
	jsonOutput      bool   // --json: machine-readable output
)

// current is the App opened for the running command.
var current *app.App

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSession, Title: "Session Commands:"},
		&cobra.Group{ID: GroupData, Title: "Server Data Commands:"},
		&cobra.Group{ID: GroupLocal, Title: "Local Commands:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURLFlag, "api-url", "", "GeoPulse API root, e.g. https://geopulse.example/api")
	pf.StringVar(&storageFlag, "storage", "", "Storage driver: memory, file, sqlite, postgres")
	pf.StringVar(&storagePathFlag, "storage-path", "", "Storage file or SQLite database path")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level for stderr: debug, info, warn (default), error")
	pf.BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	defer closeApp()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	return rootCmd.ExecuteContext(ctx)
}

func openApp(cmd *cobra.Command, args []string) error {
	if !needsApp(cmd) {
		return nil
	}
	closeApp()

	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if apiURLFlag != "" {
		cfg.APIURL = apiURLFlag
	}
	if storageFlag != "" {
		cfg.StorageDriver = strings.ToLower(storageFlag)
		if os.Getenv("STORAGE_PATH") == "" {
			cfg.StoragePath = config.DefaultStoragePath(cfg.StorageDriver)
		}
	}
	if storagePathFlag != "" {
		cfg.StoragePath = storagePathFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := logLevelFlag
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "warn"
	}
	logger := app.NewLogger(cmd.ErrOrStderr(), level)

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	current = a
	return nil
}

// needsApp reports whether cmd talks to the server or to storage.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[noAppAnnotation] == "true" {
			return false
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func closeApp() {
	if current != nil {
		current.Close()
		current = nil
	}
}

// requireUser resolves the session, reusing a stored snapshot when there is
// one. The user's time zone is applied as a side effect.
func requireUser(cmd *cobra.Command) (domain.User, error) {
	u, ok := current.Session.CheckAuth(cmd.Context())
	if !ok {
		return domain.User{}, errNotLoggedIn
	}
	return u, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSONFile decodes path, or stdin when path is "-".
func readJSONFile(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// formatInstant renders ts in loc, or "-" when it is not a valid instant.
func formatInstant(ts domain.Timestamp, loc *time.Location) string {
	if !ts.Valid() {
		return "-"
	}
	return ts.Time().In(loc).Format("2006-01-02 15:04 MST")
}
