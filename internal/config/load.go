package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar 指定配置文件路径的环境变量
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths 依次查找的配置文件
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// envKeys 环境变量到配置路径的映射，沿用部署脚本里的变量名
var envKeys = map[string]string{
	"APP_ENV": "env",

	"PORT":             "server.port",
	"SITE_NAME":        "server.site_name",
	"TEMPLATES_DIR":    "server.templates_dir",
	"CORS_ORIGINS":     "server.cors_origins",
	"FRONTEND_URL":     "server.frontend_url",
	"RATE_LIMIT_RPM":   "server.rate_limit_rpm",
	"SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"DATABASE_URL":  "database.url",
	"DB_HOST":       "database.host",
	"DB_PORT":       "database.port",
	"DB_USER":       "database.user",
	"DB_PASSWORD":   "database.password",
	"DB_NAME":       "database.name",
	"DB_SSLMODE":    "database.sslmode",
	"DB_SLOW_QUERY": "database.slow_query_threshold",

	"LOG_LEVEL":  "log.level",
	"LOG_FORMAT": "log.format",

	"TMDB_API_KEY":     "tmdb.api_key",
	"TMDB_TOKEN":       "tmdb.token",
	"TMDB_BASE_URL":    "tmdb.base_url",
	"TMDB_SLEEP":       "tmdb.delay",
	"TMDB_TIMEOUT":     "tmdb.timeout",
	"TMDB_MAX_RETRIES": "tmdb.max_retries",
	"TMDB_CACHE_TTL":   "tmdb.cache_ttl",

	"ML_DATA_DIR": "dataset.dir",
	"ML_MOVIES":   "dataset.movies",
	"ML_RATINGS":  "dataset.ratings",

	"SEED_LIMIT":    "seed.limit",
	"SEED_TOP_CAST": "seed.top_cast",

	"REDIS_URL": "redis.url",

	"API_DEFAULT_PAGE_SIZE": "api.default_page_size",
	"API_MAX_PAGE_SIZE":     "api.max_page_size",
}

// secondKeys 以秒为单位（可带小数）的变量，例如 TMDB_SLEEP=0.25
var secondKeys = map[string]bool{
	"tmdb.delay":   true,
	"tmdb.timeout": true,
}

// Load 加载配置：默认值 -> 配置文件（可选）-> 环境变量
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("加载默认配置失败: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("加载配置文件 %s 失败: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("加载环境变量失败: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envValue 映射环境变量名并转换取值，未登记的变量忽略
func envValue(key, value string) (string, interface{}) {
	path, ok := envKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	if secondKeys[path] {
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return path, time.Duration(secs * float64(time.Second))
		}
		return path, value
	}
	if path == "server.cors_origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return path, origins
	}
	return path, value
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("配置校验失败: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.TMDB.Delay < 0 {
		return errors.New("配置校验失败: tmdb.delay 不能为负数")
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return errors.New("配置校验失败: 需要 DATABASE_URL 或 DB_HOST/DB_NAME")
	}
	return nil
}
