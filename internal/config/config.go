// Package config loads the fixed HirePal configuration schema from defaults,
// an optional YAML file, a .env file and HIREPAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "HIREPAL"
	defaultConfigName = "hirepal"
)

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Candidates CandidatesConfig `mapstructure:"candidates"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Session    SessionConfig    `mapstructure:"session"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	// ParamPrefix is the SSM path holding the OpenAI token as <prefix>/open-ai-token.
	ParamPrefix string `mapstructure:"param_prefix"`
}

type RetrievalConfig struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=pgvector qdrant"`
	TopK     int            `mapstructure:"top_k" validate:"min=1,max=200"`
	MinScore float64        `mapstructure:"min_score" validate:"min=0,max=1"`
	Timeout  time.Duration  `mapstructure:"timeout" validate:"min=0"`
	PGVector PGVectorConfig `mapstructure:"pgvector"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
}

type PGVectorConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type QdrantConfig struct {
	URL        string        `mapstructure:"url" validate:"omitempty,url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type EmbeddingConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model" validate:"required"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=gemini openai bedrock"`
	Model       string        `mapstructure:"model" validate:"required"`
	Temperature float64       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=0"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"min=0"`
}

type CandidatesConfig struct {
	MaxDisplay      int    `mapstructure:"max_display" validate:"min=1,max=50"`
	MaxSkills       int    `mapstructure:"max_skills" validate:"min=1,max=20"`
	ExcerptChars    int    `mapstructure:"excerpt_chars" validate:"min=20"`
	SourceExtension string `mapstructure:"source_extension" validate:"required,startswith=."`
	CVBaseURL       string `mapstructure:"cv_base_url" validate:"required,url"`
}

type PipelineConfig struct {
	ContextChars      int  `mapstructure:"context_chars" validate:"min=100"`
	MaxQuestionLength int  `mapstructure:"max_question_length" validate:"min=1"`
	Moderation        bool `mapstructure:"moderation"`
}

type SessionConfig struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=memory dynamodb redis"`
	TTL      time.Duration  `mapstructure:"ttl" validate:"min=0"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type DynamoDBConfig struct {
	Table string `mapstructure:"table"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db" validate:"min=0"`
	Prefix     string `mapstructure:"prefix"`
	MaxRetries int    `mapstructure:"max_retries" validate:"min=0"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr" validate:"required"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.debug", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.param_prefix", "")

	v.SetDefault("retrieval.backend", "pgvector")
	v.SetDefault("retrieval.top_k", 20)
	v.SetDefault("retrieval.min_score", 0.5)
	v.SetDefault("retrieval.timeout", 15*time.Second)
	v.SetDefault("retrieval.pgvector.dsn", "")
	v.SetDefault("retrieval.pgvector.table", "cv_chunks")
	v.SetDefault("retrieval.qdrant.url", "")
	v.SetDefault("retrieval.qdrant.api_key", "")
	v.SetDefault("retrieval.qdrant.collection", "cvs")
	v.SetDefault("retrieval.qdrant.timeout", 10*time.Second)

	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 2048)

	v.SetDefault("candidates.max_display", 5)
	v.SetDefault("candidates.max_skills", 5)
	v.SetDefault("candidates.excerpt_chars", 500)
	v.SetDefault("candidates.source_extension", ".pdf")
	v.SetDefault("candidates.cv_base_url", "https://storage.googleapis.com/cv-rag-west-4/")

	v.SetDefault("pipeline.context_chars", 1200)
	v.SetDefault("pipeline.max_question_length", 1000)
	v.SetDefault("pipeline.moderation", false)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.dynamodb.table", "")
	v.SetDefault("session.redis.addr", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.prefix", "hirepal:session:")
	v.SetDefault("session.redis.max_retries", 3)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
}

// Load builds the configuration. path may be empty, in which case
// ./hirepal.yaml is used when it exists. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and the settings each selected backend needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var problems []string
	switch c.Retrieval.Backend {
	case "pgvector":
		if strings.TrimSpace(c.Retrieval.PGVector.DSN) == "" {
			problems = append(problems, "retrieval.pgvector.dsn is required for the pgvector backend")
		}
	case "qdrant":
		if strings.TrimSpace(c.Retrieval.Qdrant.URL) == "" || strings.TrimSpace(c.Retrieval.Qdrant.Collection) == "" {
			problems = append(problems, "retrieval.qdrant.url and retrieval.qdrant.collection are required for the qdrant backend")
		}
	}
	switch c.Session.Backend {
	case "dynamodb":
		if strings.TrimSpace(c.Session.DynamoDB.Table) == "" {
			problems = append(problems, "session.dynamodb.table is required for the dynamodb backend")
		}
	case "redis":
		if strings.TrimSpace(c.Session.Redis.Addr) == "" {
			problems = append(problems, "session.redis.addr is required for the redis backend")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
