package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 根配置
type Config struct {
	Server  ServerConfig `yaml:"server"`
	DataDir string       `yaml:"data_dir"`
	Log     LogConfig    `yaml:"log"`
	Rules   RulesConfig  `yaml:"rules"`
	Bridge  BridgeConfig `yaml:"bridge"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// RulesConfig 判定参数；零值字段使用默认值
type RulesConfig struct {
	GracePeriodMs      int64    `yaml:"grace_period_ms"`
	DamageAmount       float32  `yaml:"damage_amount"`
	DamageCause        string   `yaml:"damage_cause"`
	ExtraExemptBlocks  []string `yaml:"extra_exempt_blocks"`
	ForgetBrokenBlocks bool     `yaml:"forget_broken_blocks"`
}

// BridgeConfig WebSocket 桥接的队列容量
type BridgeConfig struct {
	EventQueue int `yaml:"event_queue"`
	SendQueue  int `yaml:"send_queue"`
}

// DefaultConfig 未提供配置文件时的默认值
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		DataDir: "./data",
		Log: LogConfig{
			File:       "app.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Rules: RulesConfig{
			GracePeriodMs: DefaultGracePeriod.Milliseconds(),
			DamageAmount:  DefaultDamageAmount,
			DamageCause:   DefaultDamageCause,
		},
		Bridge: BridgeConfig{EventQueue: 1024, SendQueue: 256},
	}
}

// LoadConfig 读取 YAML 配置，缺省字段保留默认值。
// path 为空时尝试环境变量 NHG_CONFIG，仍为空则只用默认值。
// NHG_ADDR / NHG_DATA_DIR 覆盖文件中的值。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("NHG_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if v := os.Getenv("NHG_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NHG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查明显非法的取值
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Rules.GracePeriodMs < 0 {
		return fmt.Errorf("rules.grace_period_ms must be >= 0, got %d", c.Rules.GracePeriodMs)
	}
	if c.Rules.DamageAmount < 0 {
		return fmt.Errorf("rules.damage_amount must be >= 0, got %v", c.Rules.DamageAmount)
	}
	return nil
}

// ToRules 转为运行期规则
func (rc RulesConfig) ToRules() Rules {
	r := DefaultRules()
	if rc.GracePeriodMs > 0 {
		r.GracePeriod = time.Duration(rc.GracePeriodMs) * time.Millisecond
	}
	if rc.DamageAmount > 0 {
		r.DamageAmount = rc.DamageAmount
	}
	if rc.DamageCause != "" {
		r.DamageCause = rc.DamageCause
	}
	extra := make([]BlockType, 0, len(rc.ExtraExemptBlocks))
	for _, b := range rc.ExtraExemptBlocks {
		extra = append(extra, BlockType(b))
	}
	r.Exempt = DefaultExemptions(extra...)
	r.ForgetBroken = rc.ForgetBrokenBlocks
	return r
}
