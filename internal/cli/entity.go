// Commands reading and deleting stored entities.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// entityView is the JSON form of an entity.
type entityView struct {
	ID        string         `json:"id"`
	Class     string         `json:"class"`
	Group     string         `json:"group"`
	ParentID  string         `json:"parent_id,omitempty"`
	Order     int            `json:"order"`
	Level     int            `json:"level"`
	Line      int            `json:"line"`
	UpdatedAt string         `json:"updated_at"`
	Columns   map[string]any `json:"columns"`
}

func viewOf(e *types.Entity) entityView {
	return entityView{
		ID:        e.ID,
		Class:     e.ShapeID,
		Group:     e.GroupName,
		ParentID:  e.ParentID,
		Order:     e.Order,
		Level:     e.Level,
		Line:      e.Line,
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
		Columns:   e.Columns,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntity(w io.Writer, e *types.Entity) {
	fmt.Fprintf(w, "%s %s (%s)\n", color.CyanString(e.ID), e.GroupName, e.ShapeID)
	keys := make([]string, 0, len(e.Columns))
	for k := range e.Columns {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", color.HiBlackString(k), e.Columns[k])
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored entity and its columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				e, err := s.GetEntity(ctx, args[0])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), viewOf(e))
				}
				printEntity(cmd.OutOrStdout(), e)
				return nil
			})
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Render a stored group and its contents as Kleio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				g, err := s.LoadGroup(ctx, args[0])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), g.ToDict())
				}
				return g.WriteKleio(cmd.OutOrStdout())
			})
		},
	}
}

func newChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children [id]",
		Short: "List the entities directly inside id, or the top-level ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				kids, err := s.Children(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					views := make([]entityView, 0, len(kids))
					for _, e := range kids {
						views = append(views, viewOf(e))
					}
					return writeJSON(out, views)
				}
				for _, e := range kids {
					fmt.Fprintf(out, "%4d  %s  %s (%s)\n", e.Order, color.CyanString(e.ID), e.GroupName, e.ShapeID)
				}
				return nil
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity and everything inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				if err := s.Delete(ctx, args[0]); err != nil {
					return err
				}
				status(cmd.OutOrStdout(), true, "deleted %s", args[0])
				return nil
			})
		},
	}
}
