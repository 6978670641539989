// Package cli implements the timelink command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/store"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir  string
	dataDir    string
	backend    string
	dsn        string
	shapesFile string
	jsonMode   bool
	verbose    bool
}

var flags rootFlags

// NewRootCmd creates the top-level "timelink" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timelink",
		Short: "Store Kleio transcriptions in a relational database",
		Long: "Timelink imports historical sources transcribed in Kleio notation and\n" +
			"stores them in tables created on demand from the class hierarchy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .timelink-db)")
	pf.StringVar(&flags.backend, "backend", "", "storage backend: sqlite or postgres")
	pf.StringVar(&flags.dsn, "dsn", "", "database connection string")
	pf.StringVar(&flags.shapesFile, "shapes", "", "YAML file with extra shape declarations")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug messages")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newImportCmd(),
		newGetCmd(),
		newShowCmd(),
		newChildrenCmd(),
		newDeleteCmd(),
		newClassesCmd(),
		newEnsureCmd(),
		newShapesCmd(),
		newExportCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// codedError carries the exit code a failure maps to.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func userError(err error) error { return &codedError{code: exitUserError, err: err} }
func sysError(err error) error  { return &codedError{code: exitSysError, err: err} }

// classify marks lookup and input errors as user errors and everything else
// as system errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return err
	}
	for _, target := range []error{
		types.ErrNotFound, types.ErrInvalidID, types.ErrClassNotFound,
		kleio.ErrSyntax, kleio.ErrSchemaViolation, kleio.ErrUnknownShape,
	} {
		if errors.Is(err, target) {
			return userError(err)
		}
	}
	return sysError(err)
}

func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}

// withStore loads the settings, attaches a backend, runs fn and detaches.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s types.Store) error) error {
	st, err := loadSettings()
	if err != nil {
		return sysError(err)
	}
	cfg, err := st.storeConfig()
	if err != nil {
		return sysError(err)
	}

	s := store.NewBackend()
	if err := s.Attach(cfg); err != nil {
		return sysError(fmt.Errorf("attach %s: %w", cfg.Backend, err))
	}
	defer s.Detach()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return classify(fn(ctx, s))
}

// status prints a colored status line to w.
func status(w io.Writer, ok bool, format string, args ...any) {
	mark := color.GreenString("✓")
	if !ok {
		mark = color.RedString("✗")
	}
	fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, args...))
}
