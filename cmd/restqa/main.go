package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"restqa/internal/config"
	"restqa/internal/logging"
	"restqa/internal/metrics"
	"restqa/internal/vars"
)

// errFailures marks a completed run with failing scenarios (exit 1). Every
// other error aborts the run (exit 2).
var errFailures = errors.New("scenarios failed")

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errFailures) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailures):
		return 1
	}
	return 2
}

var rootFlags struct {
	configDir string
	env       string
	defines   []string
	envFile   string
	logLevel  string
	logPretty bool
	out       string
}

var rootCmd = &cobra.Command{
	Use:           "restqa",
	Short:         "restqa - API test automation for REST services",
	Long:          "restqa drives REST APIs through Gherkin feature files and declarative YAML suites, and writes JSON, JUnit, HTML and coverage reports.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configDir, "config-dir", "config", "directory holding config-<env>.properties")
	pf.StringVarP(&rootFlags.env, "env", "e", "", "environment name (default $RESTQA_ENV or dev)")
	pf.StringArrayVarP(&rootFlags.defines, "define", "D", nil, "override a configuration key (key=value, repeatable)")
	pf.StringVar(&rootFlags.envFile, "env-file", ".env", "dotenv file loaded into the process environment if present")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "log level (default log.level from configuration)")
	pf.BoolVar(&rootFlags.logPretty, "log-pretty", true, "human readable console logs")
	pf.StringVarP(&rootFlags.out, "out", "o", "reports", "output directory for reports and metrics")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(bddCmd)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(stepsCmd)
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func setup() (*env, error) {
	if rootFlags.envFile != "" {
		if err := godotenv.Load(rootFlags.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", rootFlags.envFile, err)
		}
	}

	overrides, err := vars.Parse(rootFlags.defines)
	if err != nil {
		return nil, err
	}
	if rootFlags.env != "" {
		overrides[config.KeyEnv] = rootFlags.env
	}
	cfg, err := config.Load(config.Options{Dir: rootFlags.configDir, Overrides: overrides})
	if err != nil {
		return nil, err
	}

	level := rootFlags.logLevel
	if level == "" {
		level = cfg.LogLevel()
	}
	log := logging.New(level, os.Stderr, rootFlags.logPretty)
	log.Debug().Str("env", cfg.Environment()).Str("file", cfg.File()).Msg("configuration loaded")
	return &env{cfg: cfg, log: log, metrics: metrics.New()}, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
