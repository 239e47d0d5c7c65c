package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mailtriage/internal/config"
	"mailtriage/internal/inbox"
	"mailtriage/internal/keyword"
	"mailtriage/internal/llm"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/report"
	"mailtriage/internal/spamd"
)

var (
	flagLimit      int
	flagMode       string
	flagOut        string
	flagPrompt     string
	flagLegacy     bool
	flagVerifyDKIM bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailtriage",
		Short: "Classify mailbox messages and write a CSV spam report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("limit") {
				cfg.Limit = flagLimit
			}
			if cmd.Flags().Changed("mode") {
				cfg.Mode = flagMode
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputPath = flagOut
			}
			if cmd.Flags().Changed("prompt") {
				cfg.PromptTemplate = flagPrompt
			}
			cfg.LegacyParse = flagLegacy
			cfg.VerifyDKIM = flagVerifyDKIM
			return run(cfg)
		},
	}

	rootCmd.Flags().IntVar(&flagLimit, "limit", pipeline.DefaultLimit, "maximum number of messages to process")
	rootCmd.Flags().StringVar(&flagMode, "mode", "keyword", "classifier mode: keyword, llm or spamd")
	rootCmd.Flags().StringVar(&flagOut, "out", "output.csv", "report output path")
	rootCmd.Flags().StringVar(&flagPrompt, "prompt", "", "prompt template with {subject}, {body} and {from_} placeholders")
	rootCmd.Flags().BoolVar(&flagLegacy, "legacy", false, "parse LLM responses as a bare percentage instead of JSON")
	rootCmd.Flags().BoolVar(&flagVerifyDKIM, "verify-dkim", false, "log DKIM verification results per message")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailbox, err := inbox.NewGmail(ctx, inbox.Credentials{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		RefreshToken: cfg.GmailRefreshToken,
		TokenURI:     cfg.GmailTokenURI,
	}, int64(cfg.Limit))
	if err != nil {
		return fmt.Errorf("mailbox client: %w", err)
	}

	classifier, cleanup, err := buildClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sink := report.Multi{
		report.CSV{Path: cfg.OutputPath},
		report.Table{Out: os.Stdout},
	}

	p := pipeline.New(mailbox, classifier, sink, cfg.Limit)
	p.VerifyDKIM(cfg.VerifyDKIM)

	if err := p.Run(ctx); err != nil {
		return err
	}

	logStats(classifier)
	log.Printf("report written to %s", cfg.OutputPath)
	return nil
}

func buildClassifier(ctx context.Context, cfg config.Config) (pipeline.Classifier, func(), error) {
	noop := func() {}
	switch cfg.Mode {
	case "keyword":
		return keyword.New(), noop, nil
	case "spamd":
		return spamd.NewClassifier(spamd.New(cfg.SpamdHost, cfg.SpamdPort)), noop, nil
	case "llm":
		// Prefer Gemini when configured, fall back to OpenAI.
		if cfg.GeminiAPIKey != "" {
			backend, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, noop, fmt.Errorf("gemini backend: %w", err)
			}
			cleanup := func() {
				if err := backend.Close(); err != nil {
					log.Printf("warning: close gemini client: %v", err)
				}
			}
			return llm.NewClassifier(backend, cfg.PromptTemplate, cfg.LegacyParse), cleanup, nil
		}
		backend, err := llm.NewOpenAI(cfg.OpenAIApiKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, noop, fmt.Errorf("openai backend: %w", err)
		}
		return llm.NewClassifier(backend, cfg.PromptTemplate, cfg.LegacyParse), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown classifier mode %q", cfg.Mode)
	}
}

func logStats(classifier pipeline.Classifier) {
	switch c := classifier.(type) {
	case *keyword.Classifier:
		stats := c.Stats()
		log.Printf("keyword stats: processed=%d spam=%d high_importance=%d",
			stats.Processed, stats.Spam, stats.HighImportance)
	case *llm.Classifier:
		if failed := c.Failed(); failed > 0 {
			log.Printf("llm stats: %d message(s) fell back to the default verdict", failed)
		}
	}
}
