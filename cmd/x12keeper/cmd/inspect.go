package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/x12keeper/internal/segment"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <TAG> [elements...]",
	Short: "Resolve and serialize a segment offline",
	Long: `Builds a segment from its tag and data elements and prints its
serialization as JSON. Elements are resolved through the built-in envelope
schema (ISA, GS, ST, SE, GE, IEA) plus any --schema overlay.

  x12keeper inspect GS PO SENDER RECEIVER 20240131 1230 42 X 005010 --get Date --typed`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("get", "", "print the value of one field reference")
	inspectCmd.Flags().StringArray("set", nil, "assign ref=value before printing (repeatable)")
	inspectCmd.Flags().Bool("typed", false, "coerce the --get value to its element type")
	inspectCmd.Flags().String("schema", "", "YAML segment schema overlay")
}

type inspectOptions struct {
	get   string
	sets  []string
	typed bool
}

func runInspect(cmd *cobra.Command, args []string) error {
	schemaFile, _ := cmd.Flags().GetString("schema")
	schema, err := segment.LoadSchema(schemaFile)
	if err != nil {
		return err
	}

	opts := inspectOptions{}
	opts.get, _ = cmd.Flags().GetString("get")
	opts.sets, _ = cmd.Flags().GetStringArray("set")
	opts.typed, _ = cmd.Flags().GetBool("typed")

	return inspect(cmd.OutOrStdout(), schema, args, opts)
}

func inspect(w io.Writer, schema segment.Schema, elements []string, opts inspectOptions) error {
	if opts.typed && opts.get == "" {
		return fmt.Errorf("--typed requires --get")
	}

	seg, err := schema.Build(elements)
	if err != nil {
		return err
	}

	for _, assignment := range opts.sets {
		ref, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected ref=value", assignment)
		}
		if err := seg.Set(ref, value); err != nil {
			return err
		}
	}

	if opts.get != "" {
		if opts.typed {
			result, err := seg.Typed(opts.get)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, result.String())
			return err
		}
		value, err := seg.Get(opts.get)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, value)
		return err
	}

	out, err := json.MarshalIndent(seg.Serialize(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
