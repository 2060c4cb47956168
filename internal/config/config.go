package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Config 应用配置，由 Load 构造后显式传给各组件
type Config struct {
	Env      string         `koanf:"env" validate:"oneof=development production test"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Dataset  DatasetConfig  `koanf:"dataset"`
	Seed     SeedConfig     `koanf:"seed"`
	Redis    RedisConfig    `koanf:"redis"`
	API      APIConfig      `koanf:"api"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required,numeric"`
	SiteName        string        `koanf:"site_name"`
	TemplatesDir    string        `koanf:"templates_dir"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	FrontendURL     string        `koanf:"frontend_url" validate:"omitempty,url"`
	RateLimitRPM    int           `koanf:"rate_limit_rpm" validate:"gte=0"`
}

// AllowedOrigins CORS 白名单，包含前端地址
func (s ServerConfig) AllowedOrigins() []string {
	origins := append([]string{}, s.CORSOrigins...)
	if s.FrontendURL != "" {
		origins = append(origins, s.FrontendURL)
	}
	return origins
}

// DatabaseConfig 数据库配置，URL 优先于分项配置
type DatabaseConfig struct {
	URL                string        `koanf:"url"`
	Host               string        `koanf:"host"`
	Port               string        `koanf:"port"`
	User               string        `koanf:"user"`
	Password           string        `koanf:"password"`
	Name               string        `koanf:"name"`
	SSLMode            string        `koanf:"sslmode"`
	MaxOpenConns       int           `koanf:"max_open_conns" validate:"gt=0"`
	MaxIdleConns       int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime    time.Duration `koanf:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
}

// DSN 连接串
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// TMDBConfig TMDb 接口配置
type TMDBConfig struct {
	APIKey          string        `koanf:"api_key"`
	Token           string        `koanf:"token"`
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	ImageBaseURL    string        `koanf:"image_base_url" validate:"required,url"`
	Delay           time.Duration `koanf:"delay"` // 两次调用之间的最小间隔
	Timeout         time.Duration `koanf:"timeout"`
	MaxRetries      int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
}

// Enabled 配置了凭证才启用补全
func (t TMDBConfig) Enabled() bool {
	return t.APIKey != "" || t.Token != ""
}

// DatasetConfig MovieLens 数据集位置
type DatasetConfig struct {
	Dir     string `koanf:"dir" validate:"required"`
	Movies  string `koanf:"movies" validate:"required"`
	Ratings string `koanf:"ratings" validate:"required"`
}

func (d DatasetConfig) MoviesPath() string  { return filepath.Join(d.Dir, d.Movies) }
func (d DatasetConfig) RatingsPath() string { return filepath.Join(d.Dir, d.Ratings) }

// SeedConfig 导入配置
type SeedConfig struct {
	TopCast           int           `koanf:"top_cast" validate:"gt=0"`
	PlaceholderActors int           `koanf:"placeholder_actors" validate:"gt=0"`
	Limit             int           `koanf:"limit" validate:"gte=0"` // 0 表示全部
	ProgressEvery     int           `koanf:"progress_every" validate:"gt=0"`
	CacheSize         int           `koanf:"cache_size" validate:"gt=0"`
	LockTTL           time.Duration `koanf:"lock_ttl"`
}

// RedisConfig 可选，用于导入任务的单写锁
type RedisConfig struct {
	URL     string `koanf:"url"`
	LockKey string `koanf:"lock_key"`
}

// APIConfig 分页配置
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size" validate:"gt=0"`
	MaxPageSize     int `koanf:"max_page_size" validate:"gtefield=DefaultPageSize"`
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            "8000",
			SiteName:        "Movie Explorer",
			TemplatesDir:    "./web/templates",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:8080",
				"http://localhost:8081",
				"http://127.0.0.1:8080",
				"http://127.0.0.1:8081",
				"https://localhost:3000",
				"https://localhost:8080",
				"https://*.vercel.app",
				"https://*.netlify.app",
				"https://*.railway.app",
				"https://*.render.com",
			},
			RateLimitRPM: 600,
		},
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               "5432",
			User:               "postgres",
			Password:           "postgres",
			Name:               "movies",
			SSLMode:            "disable",
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetime:    30 * time.Minute,
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		TMDB: TMDBConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			ImageBaseURL:    "https://image.tmdb.org/t/p",
			Delay:           250 * time.Millisecond,
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			RetryBackoff:    time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  time.Minute,
			CacheTTL:        time.Hour,
		},
		Dataset: DatasetConfig{
			Dir:     "backend/data",
			Movies:  "movies.csv",
			Ratings: "ratings.csv",
		},
		Seed: SeedConfig{
			TopCast:           8,
			PlaceholderActors: 5,
			ProgressEvery:     50,
			CacheSize:         4096,
			LockTTL:           2 * time.Hour,
		},
		Redis: RedisConfig{
			LockKey: "movie-explorer:seed-lock",
		},
		API: APIConfig{
			DefaultPageSize: 100,
			MaxPageSize:     500,
		},
	}
}

// Default 返回默认配置（测试用）
func Default() *Config {
	cfg := defaultConfig()
	cfg.Env = "test"
	return cfg
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) String() string {
	return fmt.Sprintf("env=%s port=%s tmdb=%t dataset=%s", c.Env, c.Server.Port, c.TMDB.Enabled(), c.Dataset.Dir)
}
