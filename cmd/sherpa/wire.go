package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/config"
	"github.com/VenkatGGG/site-sherpa/internal/credentials"
	"github.com/VenkatGGG/site-sherpa/internal/planner"
	"github.com/VenkatGGG/site-sherpa/internal/query"
	"github.com/VenkatGGG/site-sherpa/internal/similarity"
	"github.com/VenkatGGG/site-sherpa/internal/teleport"
	"github.com/VenkatGGG/site-sherpa/internal/translate"
	"github.com/VenkatGGG/site-sherpa/internal/vault"
)

// services holds the process-wide collaborators built from config.
type services struct {
	vault   *vault.Vault
	planner *planner.Planner
	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	svc := &services{}

	store, closeVault, err := openVault(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc.vault = store
	svc.closers = append(svc.closers, closeVault)

	teleports, err := teleport.Load(cfg.TeleportFile)
	if err != nil {
		svc.Close()
		return nil, err
	}

	var translator translate.Translator = translate.Noop{}
	var scorer similarity.Scorer = similarity.SubstringScorer{}
	var chatScorer similarity.Scorer = similarity.KeywordScorer{}
	if cfg.TranslationEnabled || cfg.EmbeddingsEnabled {
		client := newOpenAIClient(cfg)
		if cfg.TranslationEnabled {
			t, err := translate.NewOpenAITranslator(client, cfg.TranslationModel)
			if err != nil {
				svc.Close()
				return nil, err
			}
			translator = t
		}
		if cfg.EmbeddingsEnabled {
			embeddings, err := similarity.NewEmbeddingScorer(client, cfg.EmbeddingModel, cfg.ExternalTimeout)
			if err != nil {
				svc.Close()
				return nil, err
			}
			scorer = similarity.NewFallbackScorer(embeddings, similarity.SubstringScorer{}, logger)
			chatScorer = similarity.NewFallbackScorer(embeddings, similarity.KeywordScorer{}, logger)
		}
	}

	svc.planner = planner.New(planner.Deps{
		Normalizer:  query.NewNormalizer(translator, cfg.ExternalTimeout, logger),
		Credentials: credentials.NewResolver(store, cfg.ExternalTimeout, logger),
		Teleports:   teleports,
		Scorer:      scorer,
		ChatScorer:  chatScorer,
		Logger:      logger,
	}, planner.Options{
		Threshold:     cfg.ScoreThreshold,
		MaxTextLen:    cfg.MaxTextLen,
		MaxCandidates: cfg.MaxCandidates,
	})

	logger.Info("services ready",
		zap.String("vault", store.Backend()),
		zap.String("translator", translator.Name()),
		zap.String("scorer", scorer.Name()),
		zap.Strings("teleport_domains", teleports.Domains()),
	)
	return svc, nil
}

func newOpenAIClient(cfg config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func openVault(ctx context.Context, cfg config.Config, logger *zap.Logger) (*vault.Vault, func(), error) {
	key, status, err := vault.LoadOrCreateKey(cfg.VaultKeyPath)
	if err != nil {
		return nil, nil, err
	}
	switch status {
	case vault.KeyRegenerated:
		logger.Warn("vault key was unreadable and has been regenerated; previously stored credentials are unrecoverable",
			zap.String("key_path", cfg.VaultKeyPath))
	case vault.KeyCreated:
		logger.Info("vault key created", zap.String("key_path", cfg.VaultKeyPath))
	}
	cipher, err := vault.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	var backend vault.Backend
	closer := func() {}
	switch cfg.VaultBackend {
	case config.VaultMemory:
		backend = vault.NewMemoryBackend()
	case config.VaultRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ExternalTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		backend = vault.NewRedisBackend(client, cfg.RedisPrefix)
		closer = func() { _ = client.Close() }
	case config.VaultPostgres:
		pg, err := vault.NewPostgresBackend(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		backend = pg
		closer = pg.Close
	default:
		file, err := vault.NewFileBackend(cfg.VaultDataPath, logger)
		if err != nil {
			return nil, nil, err
		}
		backend = file
	}

	store, err := vault.New(backend, cipher, logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return store, closer, nil
}
