package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ChuLiYu/labelmaker/internal/logging"
	"github.com/ChuLiYu/labelmaker/internal/settings"
)

// DefaultConfigPath 預設設定檔位置；不存在時使用內建預設值
const DefaultConfigPath = "configs/labelmaker.yaml"

// envPrefix 環境變數前綴，例如 LABELMAKER_WORKER_COMMAND
const envPrefix = "LABELMAKER"

// Config represents the complete application configuration
// Maps config file fields through mapstructure/yaml tags
type Config struct {
	Worker struct {
		Command string        `mapstructure:"command" yaml:"command"`
		Args    []string      `mapstructure:"args" yaml:"args"`
		Env     []string      `mapstructure:"env" yaml:"env"`
		Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"worker" yaml:"worker"`

	Settings struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"settings" yaml:"settings"`

	Log logging.Config `mapstructure:"log" yaml:"log"`

	Metrics struct {
		Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
		Port     int    `mapstructure:"port" yaml:"port"`
		Textfile string `mapstructure:"textfile" yaml:"textfile"`
	} `mapstructure:"metrics" yaml:"metrics"`

	Batch struct {
		Workers int `mapstructure:"workers" yaml:"workers"`
	} `mapstructure:"batch" yaml:"batch"`
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultConfig()

	v.SetDefault("worker.command", "label-worker")
	v.SetDefault("worker.args", []string{})
	v.SetDefault("worker.env", []string{})
	v.SetDefault("worker.timeout", time.Duration(0))
	v.SetDefault("settings.path", settings.DefaultPath())
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.output", logDefaults.Output)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("batch.workers", 2)
}

// loadConfig 讀取 YAML 設定檔並套用 LABELMAKER_* 環境變數
//
// 預設路徑的檔案不存在時只使用預設值；明確指定的路徑必須存在
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse config YAML: %w", err)
			}
		case errors.Is(statErr, os.ErrNotExist) && path == DefaultConfigPath:
			// 沒有設定檔，使用預設值
		default:
			return nil, fmt.Errorf("failed to read config file: %w", statErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Worker.Timeout < 0 {
		return nil, fmt.Errorf("worker.timeout must not be negative, got %s", cfg.Worker.Timeout)
	}
	if cfg.Batch.Workers < 1 {
		cfg.Batch.Workers = 1
	}
	return &cfg, nil
}
