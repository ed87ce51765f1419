package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"hirepal/internal/candidate"
	"hirepal/internal/config"
	"hirepal/internal/integrations/bedrock"
	"hirepal/internal/integrations/gemini"
	"hirepal/internal/integrations/openai"
	"hirepal/internal/integrations/paramstore"
	"hirepal/internal/intent"
	"hirepal/internal/repository"
	"hirepal/internal/retrieval"
	"hirepal/internal/session"
	"hirepal/internal/usecase"
)

// awsClients loads the shared AWS config on first use. Deployments without
// SSM references, DynamoDB sessions or Bedrock never touch AWS.
type awsClients struct {
	region string

	once   sync.Once
	cfg    aws.Config
	err    error
	params *paramstore.Client
}

func (a *awsClients) config(ctx context.Context) (aws.Config, error) {
	a.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if a.region != "" {
			opts = append(opts, awsconfig.WithRegion(a.region))
		}
		a.cfg, a.err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if a.err != nil {
			a.err = fmt.Errorf("load AWS config: %w", a.err)
		}
	})
	return a.cfg, a.err
}

func (a *awsClients) paramStore(ctx context.Context) (*paramstore.Client, error) {
	if a.params != nil {
		return a.params, nil
	}
	cfg, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	a.params = ps
	return ps, nil
}

// secret resolves "ssm:" references and passes literal values through.
func (a *awsClients) secret(ctx context.Context, value string) (string, error) {
	if !paramstore.IsSecretRef(value) {
		return paramstore.ResolveSecret(ctx, nil, value)
	}
	ps, err := a.paramStore(ctx)
	if err != nil {
		return "", err
	}
	return paramstore.ResolveSecret(ctx, ps, value)
}

// runtime is a wired AskService plus the resources it holds open.
type runtime struct {
	Service *usecase.AskService

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func buildRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger) (*runtime, error) {
	clients := &awsClients{region: cfg.AWS.Region}
	rt := &runtime{}

	embedder, err := buildOpenAI(ctx, clients, cfg.AWS.ParamPrefix, cfg.Embedding.APIKey,
		openai.WithBaseURL(cfg.Embedding.BaseURL),
		openai.WithEmbeddingModel(cfg.Embedding.Model),
	)
	if err != nil {
		return nil, wrapf(err, "embedding client")
	}

	index, closeIndex, err := buildIndex(ctx, clients, cfg.Retrieval)
	if err != nil {
		return nil, wrapf(err, "retrieval index")
	}
	if closeIndex != nil {
		rt.closers = append(rt.closers, closeIndex)
	}

	store, err := retrieval.NewRetriever(embedder, index, retrieval.Options{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
		Timeout:  cfg.Retrieval.Timeout,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	model, err := buildModel(ctx, clients, cfg)
	if err != nil {
		rt.Close()
		return nil, wrapf(err, "llm client")
	}

	sessions, closeSessions, err := buildSessions(ctx, clients, cfg.Session, log)
	if err != nil {
		rt.Close()
		return nil, wrapf(err, "session registry")
	}
	if closeSessions != nil {
		rt.closers = append(rt.closers, closeSessions)
	}

	deps := usecase.Dependencies{
		Store:      store,
		Model:      model,
		Sessions:   sessions,
		Classifier: intent.Default(),
		Aggregator: candidate.NewAggregator(candidate.Options{
			MaxDisplay:      cfg.Candidates.MaxDisplay,
			MaxSkills:       cfg.Candidates.MaxSkills,
			ExcerptChars:    cfg.Candidates.ExcerptChars,
			SourceExtension: cfg.Candidates.SourceExtension,
			CVBaseURL:       cfg.Candidates.CVBaseURL,
		}),
		Logger: log,
	}
	if cfg.Pipeline.Moderation {
		deps.Moderator = embedder
	}

	svc, err := usecase.NewAskService(deps, usecase.Options{
		MaxQuestionLength: cfg.Pipeline.MaxQuestionLength,
		ContextChars:      cfg.Pipeline.ContextChars,
		RetrievalTimeout:  cfg.Retrieval.Timeout,
		GenerationTimeout: cfg.LLM.Timeout,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc

	log.Info("pipeline ready",
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Bool("moderation", cfg.Pipeline.Moderation),
	)
	return rt, nil
}

// buildOpenAI creates an OpenAI-compatible client. A configured key (literal
// or "ssm:" reference) wins; otherwise the key is read from
// <param_prefix>/open-ai-token on first use.
func buildOpenAI(ctx context.Context, clients *awsClients, paramPrefix, apiKey string, opts ...openai.Option) (*openai.Client, error) {
	key, err := clients.secret(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if key != "" {
		return openai.NewClient(nil, "", append(opts, openai.WithAPIKey(key))...)
	}
	if paramPrefix == "" {
		return nil, errors.New("an api_key or aws.param_prefix is required")
	}
	ps, err := clients.paramStore(ctx)
	if err != nil {
		return nil, err
	}
	return openai.NewClient(ps, paramPrefix, opts...)
}

func buildIndex(ctx context.Context, clients *awsClients, cfg config.RetrievalConfig) (retrieval.Index, func(), error) {
	switch cfg.Backend {
	case "pgvector":
		dsn, err := clients.secret(ctx, cfg.PGVector.DSN)
		if err != nil {
			return nil, nil, err
		}
		pool, err := retrieval.ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		store, err := retrieval.NewPGVectorStore(pool, cfg.PGVector.Table)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case "qdrant":
		key, err := clients.secret(ctx, cfg.Qdrant.APIKey)
		if err != nil {
			return nil, nil, err
		}
		store, err := retrieval.NewQdrantStore(retrieval.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     key,
			Collection: cfg.Qdrant.Collection,
			Timeout:    cfg.Qdrant.Timeout,
		})
		return store, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown retrieval backend %q", cfg.Backend)
	}
}

func buildModel(ctx context.Context, clients *awsClients, cfg *config.Config) (usecase.LLMClient, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		key, err := clients.secret(ctx, cfg.LLM.APIKey)
		if err != nil {
			return nil, err
		}
		return gemini.NewFromAPIKey(ctx, key, cfg.LLM.Model, cfg.LLM.Temperature)
	case "openai":
		opts := []openai.Option{
			openai.WithBaseURL(cfg.LLM.BaseURL),
			openai.WithModel(cfg.LLM.Model),
			openai.WithTemperature(cfg.LLM.Temperature),
		}
		if cfg.LLM.Timeout > 0 {
			opts = append(opts, openai.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}))
		}
		return buildOpenAI(ctx, clients, cfg.AWS.ParamPrefix, cfg.LLM.APIKey, opts...)
	case "bedrock":
		awsCfg, err := clients.config(ctx)
		if err != nil {
			return nil, err
		}
		return bedrock.New(bedrockruntime.NewFromConfig(awsCfg), cfg.LLM.Model,
			bedrock.WithMaxTokens(cfg.LLM.MaxTokens),
			bedrock.WithTemperature(cfg.LLM.Temperature),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildSessions(ctx context.Context, clients *awsClients, cfg config.SessionConfig, log *zap.Logger) (session.Registry, func(), error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryRegistry(cfg.TTL), nil, nil
	case "dynamodb":
		awsCfg, err := clients.config(ctx)
		if err != nil {
			return nil, nil, err
		}
		reg, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDB.Table, cfg.TTL)
		return reg, nil, err
	case "redis":
		password, err := clients.secret(ctx, cfg.Redis.Password)
		if err != nil {
			return nil, nil, err
		}
		client, err := repository.ConnectRedis(ctx, cfg.Redis.Addr, password, cfg.Redis.DB, cfg.Redis.MaxRetries, log)
		if err != nil {
			return nil, nil, err
		}
		reg, err := repository.NewRedisRegistry(client, cfg.Redis.Prefix, cfg.TTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return reg, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
