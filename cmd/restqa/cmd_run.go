package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"restqa/internal/client"
	"restqa/internal/contract"
	"restqa/internal/executor"
	"restqa/internal/ir"
	"restqa/internal/parser"
	"restqa/internal/publish"
	"restqa/internal/reporter"
	"restqa/internal/vars"
)

var runFlags struct {
	varFiles    []string
	vars        []string
	parallel    int
	failFast    bool
	openapi     string
	minCoverage float64
	includeTags string
	excludeTags string
	name        string
	verbose     bool
	publish     string
	s3Endpoint  string
	s3Region    string
}

// restqa run: execute YAML suites.
var runCmd = &cobra.Command{
	Use:   "run SUITE...",
	Short: "Execute declarative YAML suites",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runSuites(ctx, e, args)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&runFlags.varFiles, "vars", nil, "variable files (.json, .yaml, .env), comma separated or repeated")
	f.StringArrayVar(&runFlags.vars, "var", nil, "suite variable (name=value, repeatable)")
	f.IntVar(&runFlags.parallel, "parallel", 1, "number of scenarios to execute in parallel")
	f.BoolVar(&runFlags.failFast, "fail-fast", false, "stop after the first failing scenario (forces --parallel=1)")
	f.StringVar(&runFlags.openapi, "openapi", "", "OpenAPI document for contract checks and coverage (default: the suite's openapi)")
	f.Float64Var(&runFlags.minCoverage, "min-coverage", -1, "fail when OpenAPI coverage percent is below this")
	f.StringVar(&runFlags.includeTags, "include-tags", "", "comma separated tags to include (any)")
	f.StringVar(&runFlags.excludeTags, "exclude-tags", "", "comma separated tags to exclude (any)")
	f.StringVar(&runFlags.name, "name", "", "suite name override")
	f.BoolVarP(&runFlags.verbose, "verbose", "v", false, "print every scenario, not only failures")
	f.StringVar(&runFlags.publish, "publish", "", "upload the report directory to s3://bucket/prefix")
	f.StringVar(&runFlags.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL for --publish")
	f.StringVar(&runFlags.s3Region, "s3-region", "", "region for --publish (default us-east-1)")
}

func runSuites(ctx context.Context, e *env, files []string) error {
	baseVars, err := suiteVars()
	if err != nil {
		return err
	}
	e.log.Debug().Strs("vars", vars.Names(baseVars)).Msg("suite variables")
	base, err := client.New(e.cfg,
		client.WithHook(client.LogHook{Log: e.log, Secrets: []string{e.cfg.AuthKey()}}),
		client.WithHook(client.MetricsHook{M: e.metrics}),
	)
	if err != nil {
		return err
	}

	p := parser.New()
	passed := true
	for _, file := range files {
		suite, err := p.ParseFile(file)
		if err != nil {
			return err
		}
		if runFlags.name != "" {
			suite.Name = runFlags.name
		}
		suite.Scenarios = filterByTags(suite.Scenarios, splitCSV(runFlags.includeTags), splitCSV(runFlags.excludeTags))
		if len(suite.Scenarios) == 0 {
			return fmt.Errorf("%s: no scenarios left after tag filtering", file)
		}

		outDir := rootFlags.out
		if len(files) > 1 {
			outDir = filepath.Join(outDir, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		}
		ok, err := runSuite(ctx, e, base, baseVars, file, suite, outDir)
		if err != nil {
			return err
		}
		passed = passed && ok
	}

	if err := e.metrics.WriteFile(filepath.Join(rootFlags.out, "metrics.prom")); err != nil {
		return err
	}
	if runFlags.publish != "" {
		if err := publishReports(ctx, e.log, rootFlags.out); err != nil {
			return err
		}
	}
	if !passed {
		fmt.Println("FAIL")
		return errFailures
	}
	fmt.Println("PASS")
	return nil
}

func suiteVars() (map[string]string, error) {
	fromFiles, err := vars.LoadFiles(runFlags.varFiles)
	if err != nil {
		return nil, err
	}
	fromFlags, err := vars.Parse(runFlags.vars)
	if err != nil {
		return nil, err
	}
	return vars.Merge(fromFiles, fromFlags), nil
}

func runSuite(ctx context.Context, e *env, base *client.Baseline, baseVars map[string]string, file string, suite *ir.TestSuite, outDir string) (bool, error) {
	log := e.log.With().Str("suite", suite.Name).Logger()
	r := executor.New(base).
		WithVars(baseVars).
		WithParallel(runFlags.parallel).
		WithFailFast(runFlags.failFast).
		WithLogger(log).
		WithMetrics(e.metrics)

	// flag wins; else suite.openapi relative to the suite file
	openapiFile := runFlags.openapi
	if openapiFile == "" && suite.OpenAPI != "" {
		openapiFile = suite.OpenAPI
		if !filepath.IsAbs(openapiFile) {
			openapiFile = filepath.Join(filepath.Dir(file), openapiFile)
		}
	}
	var v *contract.Validator
	if openapiFile != "" {
		var err error
		if v, err = contract.LoadFromFile(openapiFile); err != nil {
			return false, err
		}
		r = r.WithContract(v)
	}

	res, err := r.RunSuite(ctx, suite)
	if err != nil {
		return false, fmt.Errorf("execute %s: %w", file, err)
	}
	passed := res.Passed

	var cov *reporter.CoverageReport
	if v != nil {
		rep := reporter.ComputeCoverage(v.Doc(), r.Coverage())
		cov = &rep
		log.Info().Float64("percent", rep.Percent).Int("covered", rep.Covered).Int("total", rep.Total).Msg("openapi coverage")
		if runFlags.minCoverage >= 0 {
			if err := rep.Check(runFlags.minCoverage); err != nil {
				log.Error().Err(err).Msg("coverage gate failed")
				passed = false
			}
		}
	}

	paths, err := reporter.WriteAll(outDir, res, cov)
	if err != nil {
		return false, err
	}
	log.Info().Strs("files", paths).Msg("reports written")
	printSummary(res)
	return passed, nil
}

func printSummary(res *executor.SuiteResult) {
	for _, sc := range res.Scenarios {
		if sc.Passed && !runFlags.verbose {
			continue
		}
		status := "PASSED"
		if !sc.Passed {
			status = "FAILED"
		}
		fmt.Fprintf(os.Stderr, "\nScenario %s: %s [%s]\n", status, sc.Name, sc.AssertMode)
		for _, e := range sc.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
		for i, st := range sc.Steps {
			switch {
			case st.Skipped:
				fmt.Fprintf(os.Stderr, "  Step %d: skipped\n", i+1)
			case !st.Passed:
				fmt.Fprintf(os.Stderr, "  Step %d: %s %s status=%d\n", i+1, st.Method, st.URL, st.StatusCode)
				for _, e := range st.Errors {
					fmt.Fprintf(os.Stderr, "    - %s\n", e)
				}
			}
		}
	}
}

func publishReports(ctx context.Context, log zerolog.Logger, dir string) error {
	target, err := publish.ParseTarget(runFlags.publish)
	if err != nil {
		return err
	}
	api, err := publish.NewS3Client(ctx, publish.S3Options{
		Region:   runFlags.s3Region,
		Endpoint: runFlags.s3Endpoint,
		Key:      os.Getenv("RESTQA_S3_KEY"),
		Secret:   os.Getenv("RESTQA_S3_SECRET"),
	})
	if err != nil {
		return err
	}
	keys, err := publish.New(api, target, log).PublishDir(ctx, dir)
	if err != nil {
		return err
	}
	log.Info().Int("files", len(keys)).Str("target", target.String()).Msg("reports published")
	return nil
}

func filterByTags(in []ir.Scenario, include, exclude []string) []ir.Scenario {
	if len(include) == 0 && len(exclude) == 0 {
		return in
	}
	toSet := func(ss []string) map[string]bool {
		m := map[string]bool{}
		for _, s := range ss {
			m[strings.ToLower(strings.TrimPrefix(s, "@"))] = true
		}
		return m
	}
	inc, exc := toSet(include), toSet(exclude)
	hasAny := func(tags []string, m map[string]bool) bool {
		for _, t := range tags {
			if m[strings.ToLower(strings.TrimPrefix(t, "@"))] {
				return true
			}
		}
		return false
	}
	out := make([]ir.Scenario, 0, len(in))
	for _, sc := range in {
		if len(inc) > 0 && !hasAny(sc.Tags, inc) {
			continue
		}
		if len(exc) > 0 && hasAny(sc.Tags, exc) {
			continue
		}
		out = append(out, sc)
	}
	return out
}
