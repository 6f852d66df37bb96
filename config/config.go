package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// BackendConfig 模型后端配置
type BackendConfig struct {
	Source       string        `mapstructure:"source"`        // 模型来源：local 或 remote
	Model        string        `mapstructure:"model"`         // 默认模型名称
	LocalURL     string        `mapstructure:"local_url"`     // 本地服务地址，空则使用OLLAMA_HOST
	RemoteURL    string        `mapstructure:"remote_url"`    // 远程API基础URL
	APIKey       string        `mapstructure:"api_key"`       // 远程API密钥，支持${ENV_VAR}形式
	PresetModels []string      `mapstructure:"preset_models"` // 远程API预设模型列表
	Timeout      time.Duration `mapstructure:"timeout"`       // 请求超时时间
}

// PipelineConfig 批处理流水线配置
type PipelineConfig struct {
	OutputDir  string        `mapstructure:"output_dir"`  // 产出CSV目录
	MaxRetries int           `mapstructure:"max_retries"` // 提取超时最大重试次数
	RetryDelay time.Duration `mapstructure:"retry_delay"` // 重试间隔
}

// PromptsConfig 提示词库配置
type PromptsConfig struct {
	Dir string `mapstructure:"dir"` // 提示词文件目录
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
}

// StorageConfig 产出归档存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地归档路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	File       string `mapstructure:"file"`        // 日志文件路径，空则只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size"`    // 单个日志文件大小上限（MB）
	MaxBackups int    `mapstructure:"max_backups"` // 保留的滚动文件数
	MaxAgeDays int    `mapstructure:"max_age"`     // 日志保留天数
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时使用默认值并写出一份默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	expandEnvironmentVariables(&config)

	return &config, nil
}

// expandEnvironmentVariables 展开${ENV_VAR}形式的配置项
func expandEnvironmentVariables(cfg *Config) {
	cfg.Backend.APIKey = expandEnv(cfg.Backend.APIKey)
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	cfg.Queue.RedisPassword = expandEnv(cfg.Queue.RedisPassword)
}

// expandEnv 把${ENV_VAR}替换为环境变量的值，变量未设置时保持原样
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := value[2 : len(value)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 后端默认配置
	v.SetDefault("backend.source", "local")
	v.SetDefault("backend.model", "llama3")
	v.SetDefault("backend.timeout", "30s")

	// 流水线默认配置
	v.SetDefault("pipeline.output_dir", "./output")
	v.SetDefault("pipeline.max_retries", 30)
	v.SetDefault("pipeline.retry_delay", "1s")

	// 提示词库默认配置
	v.SetDefault("prompts.dir", "./prompts")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 300) // 5分钟

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 1)
	v.SetDefault("queue.retry_limit", 2)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./archive")
	v.SetDefault("storage.bucket", "memoride")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/memoride.db")

	// 日志默认配置
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
}
