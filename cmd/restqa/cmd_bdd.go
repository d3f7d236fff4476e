package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/spf13/cobra"

	"restqa/internal/steps"
)

var bddFlags struct {
	format      string
	concurrency int
	tags        string
	random      bool
	lintOnly    bool
}

// restqa bdd: run Gherkin features against the configured API.
var bddCmd = &cobra.Command{
	Use:   "bdd [PATH...]",
	Short: "Run Gherkin feature files (default ./features)",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			paths = []string{"features"}
		}
		reg, err := steps.Default()
		if err != nil {
			return err
		}
		// Undefined or ambiguous sentences are fatal before any request.
		if err := reg.Lint(paths...); err != nil {
			return err
		}
		if bddFlags.lintOnly {
			fmt.Println("all steps resolve")
			return nil
		}

		e, err := setup()
		if err != nil {
			return err
		}
		suite, err := steps.NewSuite(e.cfg, e.log, e.metrics, reg)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(rootFlags.out, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", rootFlags.out, err)
		}

		opts := godog.Options{
			Format:      bddFlags.format,
			Paths:       paths,
			Concurrency: bddFlags.concurrency,
			Tags:        bddFlags.tags,
			Strict:      true,
			Output:      os.Stdout,
		}
		if bddFlags.random {
			opts.Randomize = -1
		}
		status := godog.TestSuite{
			Name:                "restqa",
			ScenarioInitializer: suite.InitializeScenario,
			Options:             &opts,
		}.Run()

		if err := e.metrics.WriteFile(filepath.Join(rootFlags.out, "metrics.prom")); err != nil {
			return err
		}
		if status != 0 {
			return errFailures
		}
		return nil
	},
}

func init() {
	f := bddCmd.Flags()
	f.StringVarP(&bddFlags.format, "format", "f", "pretty", "godog formatters, e.g. pretty,junit:reports/bdd.xml,cucumber:reports/bdd.json")
	f.IntVarP(&bddFlags.concurrency, "concurrency", "c", 1, "scenarios run concurrently")
	f.StringVarP(&bddFlags.tags, "tags", "t", "", "tag expression, e.g. \"@smoke && ~@wip\"")
	f.BoolVar(&bddFlags.random, "random", false, "randomize scenario order")
	f.BoolVar(&bddFlags.lintOnly, "lint", false, "only check that every step resolves")
}
