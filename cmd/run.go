package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"cohortmatch/internal/assign"
	"cohortmatch/internal/cohort"
	"cohortmatch/internal/engine"
	"cohortmatch/internal/logger"
	"cohortmatch/internal/report"
	"cohortmatch/internal/scoring"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultOutput = "matches.json"
)

var overwritePrompt = promptui.Select{
	Label: "An artifact from a previous run exists. Overwrite?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one matching batch over the configured collections",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before overwriting an existing artifact")
	runCmd.Flags().StringP("output", "o", "", "path for the output artifact. Default is matches.json.")

	viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cohortmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Profiles == "" || config.Records == "" {
		logger.Fatal("both profile and record collection paths are required under profiles and records")
	}

	profiles, err := cohort.LoadProfiles(config.Profiles)
	if err != nil {
		logger.Fatal("loading profiles", zap.Error(err))
	}

	logger.Info("loading profiles", zap.Int("count", profiles.Len()))

	records, err := cohort.LoadRecords(config.Records)
	if err != nil {
		logger.Fatal("loading records", zap.Error(err))
	}

	logger.Info("loading records", zap.Int("count", records.Len()))

	output := config.Output
	if output == "" {
		output = defaultOutput
	}

	repo := report.NewRepository(output)

	if repo.Exists() && cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := overwritePrompt.Run()
		if err != nil {
			logger.Fatal("running the prompt", zap.Error(err))
		}

		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "existing artifact kept"))
			return
		}
	}

	engineConfig, err := buildEngineConfig(config)
	if err != nil {
		logger.Fatal("building engine configuration", zap.Error(err))
	}

	eng, err := engine.New(engineConfig, repo, logger)
	if err != nil {
		logger.Fatal("creating the engine", zap.Error(err))
	}

	artifact, err := eng.Run(ctx, profiles, records)
	if err != nil {
		logger.Fatal("matching run failed", zap.Error(err))
	}

	logger.Info("run complete",
		zap.String("run_id", artifact.RunID),
		zap.String("method", artifact.Method),
		zap.Int("pairs", len(artifact.Pairs)),
		zap.Int("unmatched_profiles", len(artifact.UnmatchedProfiles)),
		zap.Int("unmatched_records", len(artifact.UnmatchedRecords)),
		zap.Float64("quality_index", artifact.Diagnostics.QualityIndex),
		zap.String("output", output),
	)
}

// buildEngineConfig maps the file configuration onto engine settings,
// falling back to defaults for anything unset.
func buildEngineConfig(config *Config) (engine.Config, error) {
	cfg := engine.Config{
		Weights: scoring.DefaultWeights(),
	}

	if config.Weights != nil {
		cfg.Weights = scoring.Weights{Age: config.Weights.Age, Socio: config.Weights.Socio}
	}

	if config.Solver != nil {
		mode, err := assign.ParseMode(config.Solver.Mode)
		if err != nil {
			return cfg, err
		}
		cfg.Solver = assign.Options{
			Mode:         mode,
			ExactLimit:   config.Solver.ExactLimit,
			RepairPasses: config.Solver.RepairPasses,
			MinScore:     config.Solver.MinScore,
		}
	}

	if config.Scoring != nil {
		cfg.Scoring = scoring.BuildOptions{
			Workers:  config.Scoring.Workers,
			MaxCells: config.Scoring.MaxCells,
		}
	}

	return cfg, nil
}
