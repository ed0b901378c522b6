package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"policy-rag/internal/cache"
	"policy-rag/internal/chromemdb"
	"policy-rag/internal/chunker"
	"policy-rag/internal/config"
	"policy-rag/internal/corpus"
	"policy-rag/internal/db"
	"policy-rag/internal/embedding"
	"policy-rag/internal/llmservice"
	"policy-rag/internal/prompt"
	"policy-rag/internal/rag"
	"policy-rag/internal/vectorstore"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	manager  *corpus.Manager
	chromem  *chromemdb.VectorDBManager // nil for the pgvector backend
	pg       *db.Store                  // nil for the chromem backend
	policies *rag.PolicyAnalyzer
	useCases *rag.UseCaseAnalyzer

	closers []func()
}

// newApp wires the retrieval side and, when withLLM is set, the analyzers.
func newApp(ctx context.Context, cfg *config.Config, withLLM bool) (*app, error) {
	a := &app{cfg: cfg}

	var store embedding.Store
	if len(cfg.Embedding.Cache.Addrs) > 0 {
		redisStore, err := cache.NewRedisStore(cache.Config{
			Addrs:    cfg.Embedding.Cache.Addrs,
			Password: cfg.Embedding.Cache.Password,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisStore.Close)
		if err := redisStore.Ping(ctx); err != nil {
			log.Warn().Err(err).Strs("addrs", cfg.Embedding.Cache.Addrs).Msg("Embedding cache unreachable")
		}
		store = redisStore
	}

	embedder, err := embedding.New(cfg.Embedding, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	builder, err := a.newBuilder(ctx, embedder)
	if err != nil {
		a.Close()
		return nil, err
	}

	splitter, err := chunker.New(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager = corpus.NewManager(builder, splitter)

	if !withLLM {
		return a, nil
	}

	prompts, err := prompt.NewBuilder()
	if err != nil {
		a.Close()
		return nil, err
	}
	client, err := llmservice.New(llmservice.Config{
		BaseURL:       cfg.LLM.BaseURL,
		Key:           cfg.LLM.Key,
		Model:         cfg.LLM.Model,
		Referer:       cfg.LLM.Referer,
		Title:         cfg.LLM.Title,
		Timeout:       cfg.LLM.Timeout(),
		MaxConcurrent: cfg.LLM.MaxConcurrent,
		RatePerSec:    cfg.LLM.RatePerSec,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.policies = rag.NewPolicyAnalyzer(a.manager, client, prompts, cfg.RAG.TopK)
	a.useCases = rag.NewUseCaseAnalyzer(a.manager, client, prompts, cfg.RAG.TopK)
	return a, nil
}

func (a *app) newBuilder(ctx context.Context, embedder embedding.Embedder) (vectorstore.Builder, error) {
	switch a.cfg.Corpus.Backend {
	case config.BackendPgvector:
		sqldb, err := db.ConnectDB(&a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, a.cfg.Database.Debug)
		a.closers = append(a.closers, func() { _ = bunDB.Close() })
		if err := db.InitDB(ctx, bunDB); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.pg = db.NewStore(bunDB, embedder)
		return a.pg, nil
	default:
		m, err := chromemdb.NewVectorDBManager(
			a.cfg.Corpus.StorePath,
			a.cfg.Corpus.InMemory,
			a.cfg.Corpus.Compress,
			a.cfg.RAG.EncryptionKey,
			embedder,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector database manager: %w", err)
		}
		a.chromem = m
		return m, nil
	}
}

// initialize loads and indexes both corpora.
func (a *app) initialize(ctx context.Context) error {
	return a.manager.Initialize(ctx, a.cfg.Corpus.InternalPath, a.cfg.Corpus.GlobalPath)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
