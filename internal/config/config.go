package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds the web server settings.
type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// QdrantConfig holds vector store connection settings.
type QdrantConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Dimension  int           `mapstructure:"dimension"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig holds language-model settings.
type OpenAIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	EmbedModel string        `mapstructure:"embed_model"`
	ChatModel  string        `mapstructure:"chat_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds the streaming intake settings.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	Topic       string   `mapstructure:"topic"`
	GroupPrefix string   `mapstructure:"group_prefix"`
}

// IngestConfig holds the bulk fallback settings.
type IngestConfig struct {
	FallbackPath string `mapstructure:"fallback_path"`
}

// SearchConfig holds similarity-search settings.
type SearchConfig struct {
	Limit int `mapstructure:"limit"`
}

// ExtractConfig holds content-extraction settings.
type ExtractConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Config is the root application configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Qdrant  QdrantConfig  `mapstructure:"qdrant"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Search  SearchConfig  `mapstructure:"search"`
	Extract ExtractConfig `mapstructure:"extract"`
}

// Load reads newsrag.yaml from the working directory or
// ~/.config/newsrag/, with NEWSRAG_* environment variables taking
// precedence. Missing files are fine; defaults cover every key.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("newsrag")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "newsrag"))
		}
	}

	v.SetEnvPrefix("NEWSRAG")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")

	v.SetDefault("qdrant.url", "http://localhost:6333")
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.collection", "articles")
	v.SetDefault("qdrant.dimension", 1536)
	v.SetDefault("qdrant.timeout", 15*time.Second)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.embed_model", "text-embedding-3-small")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.username", "")
	v.SetDefault("kafka.password", "")
	v.SetDefault("kafka.topic", "news-urls")
	v.SetDefault("kafka.group_prefix", "newsrag-")

	v.SetDefault("ingest.fallback_path", "./articles_dataset.csv")

	v.SetDefault("search.limit", 5)

	v.SetDefault("extract.timeout", 10*time.Second)
	v.SetDefault("extract.user_agent", "Mozilla/5.0 (compatible; NewsRAGBot/1.0)")
}
