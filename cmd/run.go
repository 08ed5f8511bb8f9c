package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

var (
	runDeck    string
	runWebsite string
	runProfile string
	runText    string
	runName    string
	runFormat  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a single deal end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		in, err := buildInput(runDeck, runWebsite, runProfile, runText, runName)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.SubmitAndRun(ctx, in)
		if err != nil {
			if run != nil {
				zap.L().Error("deal failed",
					zap.String("deal_id", run.DealID),
					zap.String("stage", string(run.Stage())),
				)
			}
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("deal complete",
			zap.String("deal_id", run.DealID),
			zap.Float64("composite_score", run.Result.Score.CompositeScore),
			zap.String("tier", string(run.Result.Score.Tier)),
			zap.Int("unverified_citations", run.Result.Narrative.UnverifiedCount()),
			zap.Float64("estimated_cost_usd", run.Cost.TotalUSD),
		)

		return writeResult(cmd.OutOrStdout(), run.Result, runFormat)
	},
}

// buildInput assembles an InputSet from command-line values, reading the
// deck from disk.
func buildInput(deck, website, profile, text, name string) (model.InputSet, error) {
	in := model.InputSet{
		WebsiteURL:   strings.TrimSpace(website),
		ProfileURL:   strings.TrimSpace(profile),
		Text:         text,
		NameOverride: strings.TrimSpace(name),
	}
	if deck != "" {
		kind, err := documentKind(deck)
		if err != nil {
			return in, err
		}
		data, err := os.ReadFile(deck)
		if err != nil {
			return in, eris.Wrapf(err, "read deck %s", deck)
		}
		in.Document = &model.DocumentInput{Filename: filepath.Base(deck), Kind: kind, Data: data}
	}
	return in, in.Validate()
}

// documentKind maps a file name to a document kind by extension.
func documentKind(filename string) (model.DocumentKind, error) {
	kind := model.KindFromFilename(filename)
	if kind == "" {
		return "", eris.Wrapf(model.ErrInvalidInput, "unsupported document type %q (want .pdf or .pptx)", filepath.Ext(filename))
	}
	return kind, nil
}

func init() {
	runCmd.Flags().StringVar(&runDeck, "deck", "", "pitch deck file (.pdf or .pptx)")
	runCmd.Flags().StringVar(&runWebsite, "website", "", "company website URL")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "company or founder profile URL")
	runCmd.Flags().StringVar(&runText, "text", "", "free-form company description")
	runCmd.Flags().StringVar(&runName, "name", "", "company name override")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(runCmd)
}
