// Commands inspecting the class hierarchy and the shape vocabulary.

package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the declared classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				classes, err := s.Classes(ctx)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), classes)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CLASS\tTABLE\tGROUP\tSUPER")
				for _, c := range classes {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.TableName, c.GroupName, c.SuperClass)
				}
				return tw.Flush()
			})
		},
	}
}

type columnView struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Size       int    `json:"size,omitempty"`
	PrimaryKey int    `json:"primary_key,omitempty"`
	References string `json:"references,omitempty"`
}

type mappingView struct {
	Class   string       `json:"class"`
	Table   string       `json:"table"`
	Chain   []string     `json:"chain"`
	Columns []columnView `json:"columns"`
}

func kindName(k types.ColumnKind) string {
	switch k {
	case types.KindInteger:
		return "integer"
	case types.KindFloat:
		return "float"
	}
	return "string"
}

func newEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <class>",
		Short: "Create the tables of a class and its super classes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				t, err := s.EnsureMapping(ctx, args[0])
				if err != nil {
					return err
				}
				v := mappingView{Class: t.ID, Table: t.Table.Name}
				for _, at := range t.Chain() {
					v.Chain = append(v.Chain, at.ID)
				}
				for _, c := range t.Table.Columns {
					v.Columns = append(v.Columns, columnView{
						Name: c.Name, Kind: kindName(c.Kind), Size: c.Size,
						PrimaryKey: c.PrimaryKey, References: c.References,
					})
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return writeJSON(out, v)
				}
				status(out, true, "%s -> %s (%s)", v.Class, v.Table, strings.Join(v.Chain, " > "))
				for _, c := range v.Columns {
					line := fmt.Sprintf("  %s %s", c.Name, c.Kind)
					if c.Size > 0 {
						line += fmt.Sprintf("(%d)", c.Size)
					}
					if c.PrimaryKey > 0 {
						line += color.YellowString(" key")
					}
					if c.References != "" {
						line += color.HiBlackString(" -> " + c.References)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

type shapeView struct {
	Name       string   `json:"name"`
	Extends    string   `json:"extends,omitempty"`
	Position   []string `json:"position"`
	Guaranteed []string `json:"guaranteed,omitempty"`
	Part       []string `json:"part,omitempty"`
}

func newShapesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shapes",
		Short: "List the known group shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := loadSettings()
			if err != nil {
				return sysError(err)
			}
			reg, err := st.shapes()
			if err != nil {
				return classify(err)
			}
			var views []shapeView
			for _, s := range reg.Shapes() {
				v := shapeView{Name: s.Name, Position: s.Position, Guaranteed: s.Guaranteed, Part: s.Part}
				if s.Parent != nil {
					v.Extends = s.Parent.Name
				}
				views = append(views, v)
			}
			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return writeJSON(out, views)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHAPE\tEXTENDS\tPOSITION\tPART")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Extends,
					strings.Join(v.Position, "/"), strings.Join(v.Part, ","))
			}
			return tw.Flush()
		},
	}
}
