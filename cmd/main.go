package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"interview-rag/internal/chromemdb"
	"interview-rag/internal/config"
	"interview-rag/internal/embedding"
	"interview-rag/internal/helper"
	"interview-rag/internal/llmservice"
	"interview-rag/internal/parser"
	"interview-rag/internal/rag"
	"interview-rag/internal/web"
)

const (
	configFilePath = "./configs/config.yaml"
)

func main() {
	configPath := flag.String("config", configFilePath, "Path to the yaml config")
	resumePath := flag.String("resume", "", "Path to the resume PDF")
	jdPath := flag.String("jd", "", "Path to the job description PDF")
	dryRun := flag.Bool("dry-run", false, "Parse and print chunks, do not build the index")
	exportPath := flag.String("export", "", "After building, also export the index to this file")
	query := flag.String("query", "", "Prompt to answer from the saved index")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	if (*resumePath != "" || *jdPath != "") && *query != "" {
		log.Fatal().Msg("Please provide either documents using -resume/-jd or a prompt using -query, but not both")
	}

	switch {
	case *resumePath != "" || *jdPath != "":
		if *resumePath == "" || *jdPath == "" {
			log.Fatal().Msg("Both -resume and -jd are required")
		}
		buildIndex(ctx, cfg, *resumePath, *jdPath, *dryRun, *exportPath)
	case *query != "":
		performRAG(ctx, cfg, *query)
	default:
		serve(ctx, cfg)
	}
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func buildIndex(ctx context.Context, cfg *config.Config, resumePath, jdPath string, dryRun bool, exportPath string) {
	resume, err := os.ReadFile(resumePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading resume")
	}
	jd, err := os.ReadFile(jdPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading job description")
	}

	chunks, err := parser.NewParser(cfg).Ingest(resume, jd)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing documents")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Parsed documents")

	if dryRun {
		helper.PrettyPrint(chunks)
		return
	}

	embedder, err := embedding.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	if err := helper.CreateFolder(cfg.RAG.IndexPath); err != nil {
		log.Fatal().Err(err).Msg("Error creating folder")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()
	index, err := chromemdb.NewVectorDBManager(cfg.RAG.IndexPath, cfg.RAG.CollectionName, embedder).BuildIndex(ctx, chunks)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building index")
	}

	if exportPath != "" {
		if err := index.Export(exportPath, cfg.RAG.EncryptionKey); err != nil {
			log.Fatal().Err(err).Msg("Error exporting index")
		}
		log.Info().Str("file", exportPath).Msg("Index exported")
	}
}

func performRAG(ctx context.Context, cfg *config.Config, query string) {
	embedder, err := embedding.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	llm, err := llmservice.NewChatModel(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	index, err := chromemdb.NewVectorDBManager(cfg.RAG.IndexPath, cfg.RAG.CollectionName, embedder).LoadIndex()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading index, build it first with -resume and -jd")
	}

	response, err := rag.NewRAG(llm, cfg).Query(ctx, index, query, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func serve(ctx context.Context, cfg *config.Config) {
	embedder, err := embedding.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	llm, err := llmservice.NewChatModel(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	gin.SetMode(cfg.Server.GinMode)
	manager := chromemdb.NewVectorDBManager(cfg.RAG.IndexPath, cfg.RAG.CollectionName, embedder)
	server := web.NewServer(cfg, parser.NewParser(cfg), manager, rag.NewRAG(llm, cfg))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
