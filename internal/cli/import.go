package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|glob>...",
		Short: "Import Kleio files or JSONL feeds",
		Long: `Import stores every group of the given files. Files ending in .jsonl are
read as feeds of class, attribute and group records; anything else is parsed
as Kleio notation. Patterns may use ** to match nested directories.

Example:
  timelink import sources/**/*.cli
  timelink import dump.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
}

// expandPatterns resolves each argument to the files it matches, in order and
// without repeats.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, userError(fmt.Errorf("bad pattern %q: %w", p, err))
		}
		if len(matches) == 0 {
			return nil, userError(fmt.Errorf("no files match %q", p))
		}
		for _, m := range matches {
			if !slices.Contains(files, m) {
				files = append(files, m)
			}
		}
	}
	return files, nil
}

type importResult struct {
	File    string `json:"file"`
	Classes int    `json:"classes"`
	Groups  int    `json:"groups"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

func importFile(ctx context.Context, s types.Store, path string) (types.ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.ImportStats{}, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return s.ImportFeed(ctx, f)
	}
	return s.ImportKleio(ctx, f)
}

func runImport(cmd *cobra.Command, args []string) error {
	files, err := expandPatterns(args)
	if err != nil {
		return err
	}

	return withStore(cmd, func(ctx context.Context, s types.Store) error {
		out := cmd.OutOrStdout()
		var (
			results  []importResult
			firstErr error
		)
		for _, path := range files {
			stats, err := importFile(ctx, s, path)
			r := importResult{File: path, Classes: stats.Classes, Groups: stats.Groups, Skipped: stats.Skipped}
			if err != nil {
				r.Error = err.Error()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", path, err)
				}
			}
			results = append(results, r)
			if !flags.jsonMode {
				if err != nil {
					status(out, false, "%s: %v", path, err)
				} else {
					status(out, true, "%s: %d groups, %d classes, %d skipped", path, stats.Groups, stats.Classes, stats.Skipped)
				}
			}
		}
		if flags.jsonMode {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		}
		return firstErr
	})
}
