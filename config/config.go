package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/request"
)

// Config 应用总配置，按环境加载
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	LLM    LLMConfig    `yaml:"llm"`
	NATS   NATSConfig   `yaml:"nats"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
	Topic  TopicConfig  `yaml:"topic"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	Mode      string `yaml:"mode"`       // debug, release
	StaticDir string `yaml:"static_dir"` // index.html 所在目录
}

// EngineConfig 对话引擎参数
type EngineConfig struct {
	MinConfidence string        `yaml:"min_confidence"` // possible, likely, certain
	PresentPolicy string        `yaml:"present_policy"` // reject, replace, queue
	MaxReprompts  int           `yaml:"max_reprompts"`
	RepromptText  string        `yaml:"reprompt_text"`
	ListenPrompt  string        `yaml:"listen_prompt"`
	NoMatchText   string        `yaml:"no_match_text"`
	MicStartTone  string        `yaml:"mic_start_tone"`
	MicStopTone   string        `yaml:"mic_stop_tone"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type LLMConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Provider string        `yaml:"provider"` // openai, dashscope, etc.
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	EventLogSize int           `yaml:"event_log_size"`
	TTL          time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TopicConfig 声明式话题树
type TopicConfig struct {
	Name       string          `yaml:"name"`
	Preface    string          `yaml:"preface"`
	Postscript string          `yaml:"postscript"`
	Commands   []CommandConfig `yaml:"commands"`
	Subtopics  []TopicConfig   `yaml:"subtopics"`
}

// CommandConfig 话题下的一个命令
type CommandConfig struct {
	Type string `yaml:"type"`
	// Standard 使用内置识别器（search、select 等），Patterns 作为扩展模板
	Standard bool     `yaml:"standard"`
	Patterns []string `yaml:"patterns"`
	Required []string `yaml:"required"`
	// Reply 回复模板，{{param}} 替换为命令参数
	Reply string `yaml:"reply"`
	// Publish 把命令发布到 NATS
	Publish bool `yaml:"publish"`
}

// Load 根据环境变量 APP_ENV 加载对应配置文件
// 支持: local, dev, prod，默认 local
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return LoadFile(fmt.Sprintf("config/%s.yaml", env))
}

// LoadFile 加载指定配置文件
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML，补默认值并校验
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// 允许环境变量覆盖敏感配置
	overrideFromEnv(&cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideFromEnv(c *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Engine.MinConfidence == "" {
		c.Engine.MinConfidence = "likely"
	}
	if c.Engine.SessionTTL == 0 {
		c.Engine.SessionTTL = 30 * time.Minute
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 10 * time.Second
	}
	if c.Topic.Name == "" {
		c.Topic.Name = "root"
	}
}

// Validate 校验枚举值与话题树
func (c *Config) Validate() error {
	if _, err := c.Engine.Confidence(); err != nil {
		return err
	}
	if _, err := c.Engine.Policy(); err != nil {
		return fmt.Errorf("engine.present_policy: %w", err)
	}
	if c.Engine.MaxReprompts < 0 {
		return fmt.Errorf("engine.max_reprompts must not be negative")
	}
	if c.LLM.Enabled && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required when llm is enabled")
	}
	return c.Topic.validate(c.Topic.Name)
}

// Confidence 最低胜出置信度
func (e EngineConfig) Confidence() (model.Confidence, error) {
	conf, ok := model.ParseConfidence(e.MinConfidence)
	if !ok || conf == model.ConfidenceNone {
		return model.ConfidenceNone, fmt.Errorf("engine.min_confidence: unknown value %q", e.MinConfidence)
	}
	return conf, nil
}

// Policy 已有活动请求时的呈现策略
func (e EngineConfig) Policy() (request.Policy, error) {
	return request.ParsePolicy(e.PresentPolicy)
}

func (t TopicConfig) validate(path string) error {
	for i, cmd := range t.Commands {
		if cmd.Type == "" {
			return fmt.Errorf("topic %s: command %d has no type", path, i)
		}
		if !cmd.Standard && len(cmd.Patterns) == 0 {
			return fmt.Errorf("topic %s: command %s needs patterns or standard: true", path, cmd.Type)
		}
	}
	seen := make(map[string]bool, len(t.Subtopics))
	for _, sub := range t.Subtopics {
		if sub.Name == "" {
			return fmt.Errorf("topic %s: subtopic without name", path)
		}
		if seen[sub.Name] {
			return fmt.Errorf("topic %s: duplicate subtopic %s", path, sub.Name)
		}
		seen[sub.Name] = true
		if err := sub.validate(path + "/" + sub.Name); err != nil {
			return err
		}
	}
	return nil
}
