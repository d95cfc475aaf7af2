package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mars-cli/internal/browser"
	"github.com/sells-group/mars-cli/internal/fetcher"
	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/scrape"
	"github.com/sells-group/mars-cli/internal/store"
)

// scrapeRunner is satisfied by *scrape.Scraper.
type scrapeRunner interface {
	Run(ctx context.Context) (*model.Record, *model.Report)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape all Mars sites once and print the record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		strict, _ := cmd.Flags().GetBool("strict")

		if err := cfg.Validate("scrape", save); err != nil {
			return err
		}

		var st store.Store
		if save {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		return runScrape(ctx, newScraper(), st, cmd.OutOrStdout(), format, strict)
	},
}

// newScraper builds a Scraper backed by headless Chrome from cfg.
func newScraper() *scrape.Scraper {
	bopts := browser.DefaultOptions()
	bopts.Headless = cfg.Browser.Headless
	bopts.ExecPath = cfg.Browser.ExecPath
	if cfg.Browser.UserAgent != "" {
		bopts.UserAgent = cfg.Browser.UserAgent
	}
	bopts.Settle = cfg.Browser.Settle()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Scrape.UserAgent,
		Timeout:    cfg.Scrape.FactsTimeout(),
		MaxRetries: cfg.Scrape.FactsRetries,
	})

	return scrape.New(browser.ChromeOpener(bopts), f,
		scrape.WithNewsWait(cfg.Scrape.NewsWait()),
		scrape.WithStepTimeout(cfg.Scrape.StepTimeout()),
	)
}

// runScrape runs one scrape, optionally saves it, and writes the record.
// With strict set, any failed step turns into a command error after the
// record has been written.
func runScrape(ctx context.Context, r scrapeRunner, st store.Store, w io.Writer, format string, strict bool) error {
	if format != "json" && format != "yaml" {
		return eris.Errorf("scrape: unsupported format %q (json or yaml)", format)
	}

	rec, report := r.Run(ctx)

	if st != nil {
		snap, err := st.SaveSnapshot(ctx, *rec, report)
		if err != nil {
			return eris.Wrap(err, "scrape: save snapshot")
		}
		zap.L().Info("snapshot saved", zap.String("id", snap.ID))
	}

	if err := writeRecord(w, rec, format); err != nil {
		return err
	}

	if failed := report.Failed(); strict && len(failed) > 0 {
		names := make([]string, len(failed))
		for i, s := range failed {
			names[i] = string(s)
		}
		return eris.Errorf("scrape: %d step(s) failed: %s", len(failed), strings.Join(names, ", "))
	}
	return nil
}

func writeRecord(w io.Writer, rec *model.Record, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return eris.Wrap(err, "scrape: encode yaml")
		}
		return eris.Wrap(enc.Close(), "scrape: flush yaml")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rec), "scrape: encode json")
	}
}

func init() {
	scrapeCmd.Flags().String("format", "json", "output format: json or yaml")
	scrapeCmd.Flags().Bool("save", false, "persist the result as a snapshot")
	scrapeCmd.Flags().Bool("strict", false, "exit non-zero when any step fails")
	rootCmd.AddCommand(scrapeCmd)
}
