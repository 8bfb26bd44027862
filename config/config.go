package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the radar system
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// ProviderConfig contains LLM/embedding provider settings
type ProviderConfig struct {
	Type            string        `mapstructure:"type"` // openai
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SearchAPIKey    string        `mapstructure:"search_api_key"` // required for deep research
}

// PipelineConfig contains radar pipeline parameters
type PipelineConfig struct {
	TimeWindowHours          int     `mapstructure:"time_window_hours"`
	TopK                     int     `mapstructure:"top_k"`
	SimilarityThreshold      float64 `mapstructure:"similarity_threshold"`
	HotnessThreshold         float64 `mapstructure:"hotness_threshold"`
	EnableDeepResearch       bool    `mapstructure:"enable_deep_research"`
	DeepResearchThreshold    float64 `mapstructure:"deep_research_threshold"`
	MaxConcurrentEmbeddings  int     `mapstructure:"max_concurrent_embeddings"`
	MaxConcurrentSummaries   int     `mapstructure:"max_concurrent_summaries"`
	MaxConcurrentClusterRuns int     `mapstructure:"max_concurrent_cluster_tasks"`
	EnableWebFetch           bool    `mapstructure:"enable_web_fetch"`
}

func (p PipelineConfig) Validate() error {
	if p.TimeWindowHours <= 0 {
		return fmt.Errorf("pipeline.time_window_hours must be > 0")
	}
	if p.TopK <= 0 {
		return fmt.Errorf("pipeline.top_k must be > 0")
	}
	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be in [0,1]")
	}
	if p.HotnessThreshold < 0 || p.HotnessThreshold > 1 {
		return fmt.Errorf("pipeline.hotness_threshold must be in [0,1]")
	}
	if p.MaxConcurrentEmbeddings < 1 || p.MaxConcurrentSummaries < 1 || p.MaxConcurrentClusterRuns < 1 {
		return fmt.Errorf("pipeline concurrency caps must be >= 1")
	}
	return nil
}

// FeedConfig contains personal feed and cache settings
type FeedConfig struct {
	CacheTTLMinutes          int `mapstructure:"cache_ttl_minutes"`
	UpdateFrequencyMinutes   int `mapstructure:"update_frequency_minutes"`
	IncrementalWindowHours   int `mapstructure:"incremental_window_hours"`
	MaxArticlesPerFeed       int `mapstructure:"max_articles_per_feed"`
	FeedItemRetentionDays    int `mapstructure:"feed_item_retention_days"`
	InteractionRetentionDays int `mapstructure:"interaction_retention_days"`
}

func (f FeedConfig) Validate() error {
	if f.CacheTTLMinutes <= 0 {
		return fmt.Errorf("feed.cache_ttl_minutes must be > 0")
	}
	if f.UpdateFrequencyMinutes <= 0 {
		return fmt.Errorf("feed.update_frequency_minutes must be > 0")
	}
	if f.IncrementalWindowHours <= 0 {
		return fmt.Errorf("feed.incremental_window_hours must be > 0")
	}
	return nil
}

// SourcesConfig contains news source settings
type SourcesConfig struct {
	RSSFeeds     []string      `mapstructure:"rss_feeds"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// WorkerConfig contains background worker settings
type WorkerConfig struct {
	BatchSize            int           `mapstructure:"batch_size"`
	RefreshInterval      time.Duration `mapstructure:"refresh_interval"`
	RetrainInterval      time.Duration `mapstructure:"retrain_interval"`
	DiscoveryInterval    time.Duration `mapstructure:"discovery_interval"`
	CleanupCron          string        `mapstructure:"cleanup_cron"`
	ActiveWindowHours    int           `mapstructure:"active_window_hours"`
	RetrainWindowHours   int           `mapstructure:"retrain_window_hours"`
	InteractionDaysBack  int           `mapstructure:"interaction_days_back"`
	DiscoveryMinEngaged  float64       `mapstructure:"discovery_min_engagement"`
	DiscoveryMaxInterest int           `mapstructure:"discovery_max_interests"`
}

func (w WorkerConfig) Validate() error {
	if w.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("server.address", ":10030")
	viper.SetDefault("provider.type", "openai")
	viper.SetDefault("provider.completion_model", "gpt-4o-mini")
	viper.SetDefault("provider.embedding_model", "text-embedding-3-small")
	viper.SetDefault("provider.temperature", 0.3)
	viper.SetDefault("provider.max_tokens", 4096)
	viper.SetDefault("provider.timeout", "60s")
	viper.SetDefault("pipeline.time_window_hours", 24)
	viper.SetDefault("pipeline.top_k", 10)
	viper.SetDefault("pipeline.similarity_threshold", 0.85)
	viper.SetDefault("pipeline.hotness_threshold", 0.6)
	viper.SetDefault("pipeline.enable_deep_research", true)
	viper.SetDefault("pipeline.deep_research_threshold", 0.7)
	viper.SetDefault("pipeline.max_concurrent_embeddings", 10)
	viper.SetDefault("pipeline.max_concurrent_summaries", 5)
	viper.SetDefault("pipeline.max_concurrent_cluster_tasks", 8)
	viper.SetDefault("sources.fetch_timeout", "20s")
	viper.SetDefault("feed.cache_ttl_minutes", 30)
	viper.SetDefault("feed.update_frequency_minutes", 60)
	viper.SetDefault("feed.incremental_window_hours", 6)
	viper.SetDefault("feed.max_articles_per_feed", 20)
	viper.SetDefault("feed.feed_item_retention_days", 30)
	viper.SetDefault("feed.interaction_retention_days", 90)
	viper.SetDefault("worker.batch_size", 5)
	viper.SetDefault("worker.refresh_interval", "15m")
	viper.SetDefault("worker.retrain_interval", "1h")
	viper.SetDefault("worker.discovery_interval", "6h")
	viper.SetDefault("worker.cleanup_cron", "0 3 * * *")
	viper.SetDefault("worker.active_window_hours", 24)
	viper.SetDefault("worker.retrain_window_hours", 24*7)
	viper.SetDefault("worker.interaction_days_back", 30)
	viper.SetDefault("worker.discovery_min_engagement", 0.7)
	viper.SetDefault("worker.discovery_max_interests", 5)
	viper.SetDefault("sources.rss_feeds", []string{
		"https://www.ft.com/rss/companies",
		"https://seekingalpha.com/feed.xml",
		"https://www.investing.com/rss/news.rss",
		"https://www.cnbc.com/id/100003114/device/rss/rss.html",
		"https://www.marketwatch.com/rss/topstories",
	})

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("RADAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Pipeline.Validate(); err != nil {
		panic(err)
	}
	if err := config.Feed.Validate(); err != nil {
		panic(err)
	}
	if err := config.Worker.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
