package main

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
	"github.com/GriffinCanCode/pagefetch/internal/providers/scraper"
)

type fetchFlags struct {
	selector  string
	timeout   time.Duration
	waitUntil string
	raw       bool
	adblock   bool
}

// envelope mirrors the JSON body of GET /
type envelope struct {
	Success   bool     `json:"success"`
	FromCache *bool    `json:"fromCache,omitempty"`
	Data      []string `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func newFetchCmd() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch [url...]",
		Short: "Fetch one or more pages and print the result",
		Long: `Fetches each URL through the browser and prints the JSON envelope
returned by GET /. With --raw the upstream body of a single URL is written
unchanged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.selector, "selector", "s", "", "CSS or XPath selector to wait for")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", fetch.DefaultTimeout, "Per-attempt timeout")
	cmd.Flags().StringVar(&flags.waitUntil, "wait-until", string(fetch.WaitLoad), "load, domcontentloaded, networkidle0 or networkidle2")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Print the upstream response body instead of rendered HTML")
	cmd.Flags().BoolVar(&flags.adblock, "adblock", true, "Block ad and tracker requests")
	return cmd
}

func runFetch(cmd *cobra.Command, urls []string, flags fetchFlags) error {
	waitUntil, err := fetch.ParseWaitUntil(flags.waitUntil)
	if err != nil {
		return err
	}
	batch := fetch.Batch{
		URLs:     urls,
		Selector: flags.selector,
		Raw:      flags.raw,
		Options: fetch.Options{
			Timeout:   flags.timeout,
			WaitUntil: waitUntil,
			Adblock:   flags.adblock,
		},
	}
	// Reject bad input before a browser is launched
	if err := fetch.Validate(batch); err != nil {
		return err
	}
	if batch.Selector != "" {
		if err := scraper.ValidSelector(batch.Selector); err != nil {
			return fetch.ValidationError("%v", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, err := buildDeps(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	out, err := deps.Fetcher.FetchAll(cmd.Context(), batch)
	w := cmd.OutOrStdout()
	if err != nil {
		_ = writeEnvelope(w, envelope{Success: false, Error: err.Error()})
		return err
	}

	if batch.Raw {
		if len(out.Results) != 1 || out.Results[0].Raw == nil {
			return fmt.Errorf("no raw response captured")
		}
		_, err := w.Write(out.Results[0].Raw.Body)
		return err
	}

	data := make([]string, len(out.Results))
	for i, res := range out.Results {
		data[i] = res.HTML
	}
	fromCache := out.FromCache
	return writeEnvelope(w, envelope{Success: true, FromCache: &fromCache, Data: data})
}

func writeEnvelope(w io.Writer, env envelope) error {
	b, err := sonic.ConfigStd.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
