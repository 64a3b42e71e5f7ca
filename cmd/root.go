package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cohortmatch"
)

type Config struct {
	Profiles string         `mapstructure:"profiles"`
	Records  string         `mapstructure:"records"`
	Output   string         `mapstructure:"output"`
	Weights  *WeightsConfig `mapstructure:"weights"`
	Solver   *SolverConfig  `mapstructure:"solver"`
	Scoring  *ScoringConfig `mapstructure:"scoring"`
}

type WeightsConfig struct {
	Age   float64 `mapstructure:"age"`
	Socio float64 `mapstructure:"socio"`
}

type SolverConfig struct {
	Mode         string  `mapstructure:"mode"`
	ExactLimit   int     `mapstructure:"exact-limit"`
	RepairPasses int     `mapstructure:"repair-passes"`
	MinScore     float64 `mapstructure:"min-score"`
}

type ScoringConfig struct {
	Workers  int `mapstructure:"workers"`
	MaxCells int `mapstructure:"max-cells"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cohortmatch pairs demographic profiles with clinical records and reports match quality",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cohortmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for the run command. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
