// Command simulator replays scenario scripts against an in-process pool
// system and writes per-step results as JSON lines.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/defistate/clamm-engine-go/scenario"
)

func main() {
	root := &cobra.Command{
		Use:          "simulator",
		Short:        "Concentrated liquidity pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run [scenario.json...]",
		Short: "Replay scenario scripts",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScenarios,
	}

	runCmd.Flags().String("out", "./data/results.jsonl", "output JSONL path")
	runCmd.Flags().Bool("diffs", false, "record a state diff per step")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runConfig holds configuration merged from flags, env, and config file.
type runConfig struct {
	Out         string
	RecordDiffs bool
	LogLevel    string
}

func loadConfig(cfgFile string, flags *pflag.FlagSet) (runConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SIMULATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/results.jsonl")
	v.SetDefault("diffs", false)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return runConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return runConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return runConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return runConfig{
		Out:         v.GetString("out"),
		RecordDiffs: v.GetBool("diffs"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

func runScenarios(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	writer := scenario.NewJsonlWriter(cfg.Out)

	for _, path := range args {
		sc, err := scenario.Load(path)
		if err != nil {
			return err
		}

		runner, err := scenario.NewRunner(scenario.RunnerConfig{
			Logger:      &zapAdapter{logger.Sugar()},
			Metrics:     prometheus.NewRegistry(),
			RecordDiffs: cfg.RecordDiffs,
		})
		if err != nil {
			return err
		}

		logger.Info("running scenario", zap.String("name", sc.Name), zap.Int("steps", len(sc.Steps)))
		results, err := runner.Run(sc)
		if werr := writer.WriteResults(results); werr != nil {
			return werr
		}
		if err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		logger.Info("scenario complete", zap.String("name", sc.Name), zap.Int("steps", len(results)))
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// zapAdapter bridges a sugared zap logger to the pool system's Logger.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (z *zapAdapter) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z *zapAdapter) Info(msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z *zapAdapter) Warn(msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z *zapAdapter) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }
