package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBucket         = "petri-uploads"
	DefaultModel          = "gpt-4o-mini"
	DefaultSpecies        = "dog"
	DefaultKnowledgeTable = "knowledge_base"
	DefaultKnowledgeLimit = 3
	DefaultRegion         = "us-east-1"
	DefaultSignedURLTTL   = 10 * time.Minute
	DefaultMaxUploadBytes = 20 << 20
	DefaultCallTimeout    = 30 * time.Second
	DefaultCacheTTL       = 5 * time.Minute
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Storage   StorageConfig   `yaml:"storage"`
	Chat      ChatConfig      `yaml:"chat"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

// RedisConfig Redis 配置，Host 为空时不启用知识库缓存
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cacheTtl"`
}

// Enabled 是否配置了 Redis
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// OpenAIConfig 推理服务配置（文本 + 视觉）
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

// KnowledgeConfig 知识库配置，DSN 为空时使用内置内存知识库
type KnowledgeConfig struct {
	DSN            string `yaml:"dsn"`
	Table          string `yaml:"table"`
	DefaultSpecies string `yaml:"defaultSpecies"`
	Limit          int    `yaml:"limit"`
}

// StorageConfig 对象存储配置（Supabase Storage 的 S3 兼容接口）
type StorageConfig struct {
	SupabaseURL     string        `yaml:"supabaseUrl"`
	ServiceRole     string        `yaml:"serviceRole"`
	AnonKey         string        `yaml:"anonKey"`
	Endpoint        string        `yaml:"endpoint"`
	Region          string        `yaml:"region"`
	AccessKeyID     string        `yaml:"accessKeyId"`
	SecretAccessKey string        `yaml:"secretAccessKey"`
	SessionToken    string        `yaml:"sessionToken"`
	Bucket          string        `yaml:"bucket"`
	SignedURLTTL    time.Duration `yaml:"signedUrlTtl"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	CallTimeout     time.Duration `yaml:"callTimeout"` // 单次上传或签名的超时时间
}

// ChatConfig 问答流水线配置
type ChatConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
	Parallel    bool          `yaml:"parallel"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// LoadConfig 加载配置：YAML 文件 → .env → 环境变量 → 默认值
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// 没有配置文件时完全依赖环境变量
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")

	setString(&c.Knowledge.DSN, "KNOWLEDGE_DB_DSN")
	setString(&c.Knowledge.DefaultSpecies, "KNOWLEDGE_DEFAULT_SPECIES")

	setString(&c.Storage.SupabaseURL, "SUPABASE_URL")
	setString(&c.Storage.ServiceRole, "SUPABASE_SERVICE_ROLE")
	setString(&c.Storage.AnonKey, "SUPABASE_ANON_KEY")
	setString(&c.Storage.Bucket, "SUPABASE_STORAGE_BUCKET")
	setString(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&c.Storage.Region, "STORAGE_REGION")
	setString(&c.Storage.AccessKeyID, "STORAGE_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "STORAGE_SECRET_ACCESS_KEY")

	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setInt(&c.Server.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")

	if v := os.Getenv("CHAT_PARALLEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chat.Parallel = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "petri"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultModel
	}
	if c.Knowledge.Table == "" {
		c.Knowledge.Table = DefaultKnowledgeTable
	}
	if c.Knowledge.DefaultSpecies == "" {
		c.Knowledge.DefaultSpecies = DefaultSpecies
	}
	if c.Knowledge.Limit <= 0 || c.Knowledge.Limit > DefaultKnowledgeLimit {
		c.Knowledge.Limit = DefaultKnowledgeLimit
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = DefaultBucket
	}
	if c.Storage.Region == "" {
		c.Storage.Region = DefaultRegion
	}
	if c.Storage.Endpoint == "" && c.Storage.SupabaseURL != "" {
		c.Storage.Endpoint = strings.TrimRight(c.Storage.SupabaseURL, "/") + "/storage/v1/s3"
	}
	// Supabase 的 session token 认证：project ref + anon key + 服务端 JWT
	if c.Storage.AccessKeyID == "" && c.Storage.ServiceRole != "" && c.Storage.AnonKey != "" {
		c.Storage.AccessKeyID = projectRef(c.Storage.SupabaseURL)
		c.Storage.SecretAccessKey = c.Storage.AnonKey
		c.Storage.SessionToken = c.Storage.ServiceRole
	}
	if c.Storage.SignedURLTTL <= 0 {
		c.Storage.SignedURLTTL = DefaultSignedURLTTL
	}
	if c.Storage.MaxUploadBytes <= 0 {
		c.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Storage.CallTimeout <= 0 {
		c.Storage.CallTimeout = DefaultCallTimeout
	}
	if c.Redis.Host != "" && c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = DefaultCacheTTL
	}
	if c.Chat.CallTimeout <= 0 {
		c.Chat.CallTimeout = DefaultCallTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 检查必需的凭证是否存在，只报告缺失项，不输出具体值
func (c *Config) Validate() error {
	var missing []string
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Storage.Endpoint == "" {
		missing = append(missing, "SUPABASE_URL or STORAGE_ENDPOINT")
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		missing = append(missing, "STORAGE_ACCESS_KEY_ID/STORAGE_SECRET_ACCESS_KEY or SUPABASE_SERVICE_ROLE+SUPABASE_ANON_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少配置项: %s", strings.Join(missing, ", "))
	}
	return nil
}

func projectRef(supabaseURL string) string {
	u, err := url.Parse(supabaseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	ref, _, _ := strings.Cut(u.Hostname(), ".")
	return ref
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
