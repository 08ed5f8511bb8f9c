package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

var resultFormat string

var resultCmd = &cobra.Command{
	Use:   "result <deal-id>",
	Short: "Print every artifact of a completed deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initReadOnly(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Result(ctx, args[0])
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res, resultFormat)
	},
}

// writeResult renders a run result as indented JSON or YAML. YAML goes
// through the JSON form so field names match the API.
func writeResult(w io.Writer, res *model.RunResult, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		raw, err := json.Marshal(res)
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return eris.Wrap(err, "unmarshal result")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func init() {
	resultCmd.Flags().StringVar(&resultFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(resultCmd)
}
