package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
	// HistoryEnabled 是否记录生成历史（仅元数据，不保存模型）
	HistoryEnabled bool `yaml:"history_enabled"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, eino
	APIURL      string  `yaml:"api_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// Timeout 单次调用超时，超时即中止本次请求
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// 限流退避: min(base + 2^attempt*unit, cap)
	RateLimitBase time.Duration `yaml:"rate_limit_base"`
	RateLimitUnit time.Duration `yaml:"rate_limit_unit"`
	RateLimitCap  time.Duration `yaml:"rate_limit_cap"`
	// 网络/超时退避: min(step*(attempt+1), cap)
	TransientStep time.Duration `yaml:"transient_step"`
	TransientCap  time.Duration `yaml:"transient_cap"`
}

type PipelineConfig struct {
	// SimplifyAfter 已发生的调用次数达到该值后改用精简提示词
	SimplifyAfter     int  `yaml:"simplify_after"`
	CorrectionEnabled bool `yaml:"correction_enabled"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type:           "sqlite",
			DSN:            "./data/app.db",
			HistoryEnabled: true,
		},
		LLM: LLMConfig{
			Provider:      "openai",
			APIURL:        "https://api.openai.com/v1",
			Model:         "gpt-4o",
			MaxTokens:     4096,
			Temperature:   0.2,
			Timeout:       2 * time.Minute,
			MaxRetries:    3,
			RateLimitBase: time.Second,
			RateLimitUnit: time.Second,
			RateLimitCap:  30 * time.Second,
			TransientStep: 2 * time.Second,
			TransientCap:  10 * time.Second,
		},
		Pipeline: PipelineConfig{
			SimplifyAfter:     1,
			CorrectionEnabled: true,
		},
	}
}

func loadConfig() *Config {
	// .env 只补充未设置的环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		klog.Warningf("加载 .env 失败: %v", err)
	}

	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			klog.Errorf("解析配置文件 %s 失败: %v", configPath, err)
		}
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.LLM.MaxRetries = n
		}
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.LLM.Timeout = d
		}
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}

// Save 将生效配置（默认值 + 文件 + 环境变量）写出为 yaml
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

