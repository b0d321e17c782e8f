package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServiceURL     = "http://127.0.0.1:5000"
	DefaultGenerateURL    = "http://localhost:11434"
	DefaultGenerateModel  = "llama3"
	DefaultPollSeconds    = 5
	DefaultTimeoutSeconds = 60
	DefaultLogFileName    = "custardpie.log"

	// DefaultUpdateRepo version --check 查询的 GitHub 仓库（owner/name）
	DefaultUpdateRepo = "Zacy-Sokach/CustardPie"
)

type Config struct {
	ServiceURL            string `yaml:"service_url"`
	GenerateURL           string `yaml:"generate_url"`
	GenerateModel         string `yaml:"generate_model"`
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	LogFile               string `yaml:"log_file,omitempty"`
	UpdateRepo            string `yaml:"update_repo"`
	Debug                 bool   `yaml:"debug"`
}

// DefaultConfig 返回全部字段为默认值的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// PollInterval 模型列表轮询间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RequestTimeout 非流式请求的超时
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LogPath 返回日志文件的绝对路径，相对路径以配置目录为基准
func (c *Config) LogPath() (string, error) {
	name := c.LogFile
	if name == "" {
		name = DefaultLogFileName
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, name), nil
}

func (c *Config) applyDefaults() {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if c.GenerateURL == "" {
		c.GenerateURL = DefaultGenerateURL
	}
	if c.GenerateModel == "" {
		c.GenerateModel = DefaultGenerateModel
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollSeconds
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.UpdateRepo == "" {
		c.UpdateRepo = DefaultUpdateRepo
	}
}

// Path 返回配置文件的路径
func Path() (string, error) {
	return getConfigPath()
}

// Exists 配置文件是否已存在
func Exists() (bool, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return true, nil
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
