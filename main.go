package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"financeagent/internal/analyst"
	"financeagent/internal/config"
	"financeagent/internal/coordinator"
	"financeagent/internal/duckduckgo"
	"financeagent/internal/logger"
	"financeagent/internal/ratelimit"
	"financeagent/internal/render"
	"financeagent/internal/server"
	"financeagent/internal/summarizer"
	"financeagent/internal/ticker"
	"financeagent/internal/yahoo"
)

const requestTimeout = 60 * time.Second

type cliOptions struct {
	prompt    string
	compare   string
	focus     string
	raw       bool
	noNews    bool
	noSearch  bool
	noFinance bool
}

func main() {
	flags := pflag.NewFlagSet("financeagent", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: financeagent [flags] <prompt...>\n\n")
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)

	var cli cliOptions
	serve := flags.Bool("serve", false, "run the HTTP API instead of answering a single prompt")
	flags.StringVar(&cli.compare, "compare", "", "compare two tickers, e.g. AAPL,MSFT")
	flags.StringVar(&cli.focus, "focus", "", "focus area for --compare")
	flags.BoolVar(&cli.raw, "raw", false, "print the raw evidence bundle as JSON")
	flags.BoolVar(&cli.noNews, "no-news", false, "skip web news")
	flags.BoolVar(&cli.noSearch, "no-search", false, "skip web search")
	flags.BoolVar(&cli.noFinance, "no-finance", false, "skip per-ticker finance data")
	_ = flags.Parse(os.Args[1:])
	cli.prompt = strings.Join(flags.Args(), " ")

	// Load configuration
	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	// Cancel in-flight work on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(cfg, log)
	if err != nil {
		log.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	if *serve {
		err = serveHTTP(ctx, cfg, svc, log)
	} else {
		err = runOnce(ctx, svc, cfg.Defaults, cli, os.Stdout)
	}
	if err != nil {
		log.Error("finished with error", "error", err)
		os.Exit(1)
	}
}

// newService wires the provider clients, the coordinator and the summarizer
func newService(cfg *config.Config, log *slog.Logger) (*analyst.Service, error) {
	limiter := ratelimit.New(map[ratelimit.API]float64{
		ratelimit.APIDuckDuckGo: cfg.DuckDuckGoRPS,
		ratelimit.APIYahoo:      cfg.YahooRPS,
		ratelimit.APIAnthropic:  cfg.AnthropicRPS,
	})
	clientOpts := cfg.ClientOptions(log)

	ddg := duckduckgo.NewClient(cfg.DuckDuckGoHTMLURL, cfg.DuckDuckGoBaseURL, clientOpts, limiter)
	yc := yahoo.NewClient(cfg.YahooBaseURL, clientOpts, limiter)

	coord := coordinator.New(
		coordinator.Sources{News: ddg, Web: ddg, Finance: yc},
		coordinator.Options{
			Workers:     cfg.WorkerPoolSize,
			CallTimeout: cfg.CallTimeout,
			Logger:      log,
		},
	)

	var sum summarizer.Summarizer
	if cfg.AnthropicAPIKey != "" {
		a, err := summarizer.NewAnthropic(summarizer.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			BaseURL:   cfg.AnthropicBaseURL,
			MaxTokens: cfg.SummaryMaxTokens,
			Timeout:   cfg.SummaryTimeout,
			Logger:    log,
		}, limiter)
		if err != nil {
			return nil, err
		}
		sum = a
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, answers will only carry the raw evidence")
	}

	return analyst.New(ticker.NewDefault(yc, log), coord, sum, log), nil
}

// runOnce answers a single prompt or comparison and prints it to out
func runOnce(ctx context.Context, svc *analyst.Service, defaults config.Request, cli cliOptions, out io.Writer) error {
	opts := defaults
	if cli.noNews {
		opts.IncludeWebNews = false
	}
	if cli.noSearch {
		opts.IncludeWebSearch = false
	}
	if cli.noFinance {
		opts.IncludeFinance = false
	}

	// Add timeout to prevent hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		ans *analyst.Answer
		err error
	)
	switch {
	case cli.compare != "":
		pair := strings.Split(cli.compare, ",")
		if len(pair) != 2 {
			return analyst.ErrInvalidTickers
		}
		ans, err = svc.Compare(ctx, pair[0], pair[1], cli.focus, opts)
	case strings.TrimSpace(cli.prompt) != "":
		ans, err = svc.Ask(ctx, cli.prompt, opts)
	default:
		return errors.New("a prompt or --compare is required")
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, ans.Content)
	if overview := render.Overview(ans.Bundle); overview != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, overview)
	}

	if cli.raw {
		data, err := ans.Bundle.JSON()
		if err != nil {
			return fmt.Errorf("failed to encode evidence: %w", err)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(data))
	}

	return nil
}

// serveHTTP runs the API until ctx is canceled
func serveHTTP(ctx context.Context, cfg *config.Config, svc *analyst.Service, log *slog.Logger) error {
	handler := server.New(svc, server.Options{
		Defaults: cfg.Defaults,
		Logger:   log,
	})

	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      server.DefaultRequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
