package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timelink/internal/paths"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize timelink storage",
		Long: "Create the configuration directory and config.yaml when missing, then\n" +
			"attach to the database so the metadata tables and base classes exist.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	st, err := loadSettings()
	if err != nil {
		return sysError(err)
	}
	if err := os.MkdirAll(st.configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}

	path := paths.ConfigFile(st.configDir)
	written, err := writeConfigIfMissing(path, configFile{
		Backend:    st.backend,
		DataDir:    st.dataDir,
		ShapesFile: st.shapesFile,
		LogLevel:   defaultLogLevel,
	})
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}
	out := cmd.OutOrStdout()
	if written {
		status(out, true, "wrote %s", path)
	}

	return withStore(cmd, func(ctx context.Context, s types.Store) error {
		classes, err := s.Classes(ctx)
		if err != nil {
			return err
		}
		status(out, true, "timelink initialized (%d classes)", len(classes))
		return nil
	})
}
