package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"newsrag/internal/config"
	"newsrag/internal/extract"
	"newsrag/internal/ingest"
	"newsrag/internal/llm"
	"newsrag/internal/pipeline"
	"newsrag/internal/server"
	"newsrag/internal/store"
)

var (
	logger  *zap.Logger
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "newsrag",
	Short: "newsrag - news ingestion and retrieval-augmented query service",
}

// deps is everything the subcommands need, wired once from config.
type deps struct {
	cfg       *config.Config
	processor *pipeline.Processor
	answerer  *pipeline.Answerer
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:    cfg.OpenAI.BaseURL,
		APIKey:     cfg.OpenAI.APIKey,
		EmbedModel: cfg.OpenAI.EmbedModel,
		ChatModel:  cfg.OpenAI.ChatModel,
		Timeout:    cfg.OpenAI.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	st := store.NewQdrantStore(store.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    cfg.Qdrant.Timeout,
	}, llmClient, logger)
	if err := st.EnsureCollection(ctx, cfg.Qdrant.Dimension); err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	extractor := extract.NewWebExtractor(extract.Config{
		UserAgent: cfg.Extract.UserAgent,
		Timeout:   cfg.Extract.Timeout,
	}, logger)

	processor := pipeline.NewProcessor(st, extractor, logger)
	answerer := pipeline.NewAnswerer(processor, st, llmClient, logger, cfg.Search.Limit)

	return &deps{cfg: cfg, processor: processor, answerer: answerer}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion consumer and the query HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Setup Signal Handling (Ctrl+C)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			cancel()
		}()

		d, err := buildDeps(ctx)
		if err != nil {
			return err
		}

		stream := ingest.NewKafkaStream(ingest.KafkaConfig{
			Brokers:     d.cfg.Kafka.Brokers,
			Username:    d.cfg.Kafka.Username,
			Password:    d.cfg.Kafka.Password,
			Topic:       d.cfg.Kafka.Topic,
			GroupPrefix: d.cfg.Kafka.GroupPrefix,
		})
		controller := ingest.NewController(stream, d.processor, d.cfg.Ingest.FallbackPath, logger)
		if err := controller.Start(ctx); err != nil {
			return fmt.Errorf("start ingestion: %w", err)
		}
		defer controller.Stop()

		srv := server.NewServer(d.answerer, logger)
		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.Start(d.cfg.HTTP.Port)
		}()

		select {
		case err := <-errChan:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
		logger.Info("Goodbye!")
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Ingest a single URL immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := buildDeps(ctx)
		if err != nil {
			return err
		}

		article, err := d.processor.Process(ctx, args[0])
		if err != nil {
			return err
		}

		logger.Info("Article ingested",
			zap.String("id", article.ID),
			zap.String("title", article.Title),
			zap.String("date", article.Date))
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Answer a query against the ingested corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := buildDeps(ctx)
		if err != nil {
			return err
		}

		response := d.answerer.Answer(ctx, strings.Join(args, " "))

		out, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func main() {
	_ = godotenv.Load()

	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./newsrag.yaml or ~/.config/newsrag/newsrag.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(askCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
