package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/phux/apicheck/app"

	"github.com/spf13/cobra"
)

// ErrFindings is returned when at least one case failed.
var ErrFindings = errors.New("findings reported")

const envPrefix = "APICHECK"

// flagKeys maps CLI flags to their config keys.
var flagKeys = map[string]string{
	"baseURL":     "baseURL",
	"caseFile":    "caseFile",
	"headerFile":  "headerFile",
	"outputFile":  "outputFile",
	"metricsFile": "metricsFile",
	"rateLimit":   "rateLimit",
	"timeout":     "timeout",
	"logLevel":    "logging.level",
	"logFormat":   "logging.format",
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "apicheck",
		Short:         "run HTTP contract cases against a JSON API",
		Long:          `run HTTP contract cases against a JSON API and report every case whose response breaks its expectations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			for flag, key := range flagKeys {
				f := cmd.Flags().Lookup(flag)
				if f != nil && f.Changed {
					overrides[key] = f.Value.String()
				}
			}

			cfg, err := app.NewLoader(envPrefix, configFile).
				WithOverrides(overrides).
				Load(cmd.Context())
			if err != nil {
				return err
			}

			logger, err := app.NewLogger(cfg.Logging, stderr)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg, logger)
		},
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "[optional] YAML or JSON config file")
	rootCmd.Flags().String("caseFile", "", "[optional] JSON file with cases (default: built-in /users suite)")
	rootCmd.Flags().String("baseURL", app.DefaultBaseURL, "[optional] base URL every case path is resolved against")
	rootCmd.Flags().String("headerFile", "", "[optional] headerFile: JSON object (string: string) of headers applied to every request")
	rootCmd.Flags().Float64("rateLimit", 0, "[optional] rate limit of requests / second (0: unlimited)")
	rootCmd.Flags().Duration("timeout", 0, "[optional] per request timeout (0: transport default)")
	rootCmd.Flags().String("outputFile", "", "[optional] outputFile: path to write the findings to if > 0 findings (default: \"\" -> log)")
	rootCmd.Flags().String("metricsFile", "", "[optional] write Prometheus metrics in text format to this file")
	rootCmd.Flags().String("logLevel", "info", "[optional] debug, info, warn or error")
	rootCmd.Flags().String("logFormat", "text", "[optional] text or json")

	return rootCmd
}

func run(ctx context.Context, cfg app.Config, logger *slog.Logger) error {
	headers, err := app.LoadHeadersFromFile(cfg.HeaderFile)
	if err != nil {
		return err
	}

	cases := app.UsersSuite()
	if cfg.CaseFile != "" {
		loaded, err := app.LoadCasesFromFile(cfg.CaseFile)
		if err != nil {
			return err
		}
		cases = *loaded
	}

	recorder := app.NewRecorder(nil)
	fixture := app.NewFixture(cfg.FixtureOptions(headers), logger, recorder)

	var results *app.Results
	runErr := fixture.With(func(rc *app.RequestContext) error {
		logger.Info("starting",
			slog.String("base_url", rc.BaseURL()),
			slog.Int("cases", len(cases.Cases)),
			slog.Float64("rate_limit", cfg.RateLimit),
		)

		a := app.NewApp(rc, app.NewURLParser(), logger, recorder)
		a.AddCases(cases)
		results = a.Results

		return a.Run(ctx)
	})

	// Aborted runs still leave their request metrics behind.
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}

	return report(cfg.OutputFile, results, logger)
}

func report(outputFile string, results *app.Results, logger *slog.Logger) error {
	if !results.Failed() {
		logger.Info("all cases passed")

		return nil
	}

	if outputFile == "" {
		for _, finding := range results.Findings {
			logger.Error("finding",
				slog.String("case", finding.Case),
				slog.String("url", finding.URL),
				slog.String("error", finding.Error),
				slog.String("diff", finding.Diff),
			)
		}
	} else {
		findings, err := json.MarshalIndent(results.Findings, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputFile, findings, 0o644); err != nil {
			return err
		}
		logger.Info("written findings", slog.String("path", outputFile))
	}

	return fmt.Errorf("%w: %d of %d cases failed", ErrFindings, results.Summary.Failed, results.Summary.Total)
}

func Execute() {
	if err := newRootCmd(os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
