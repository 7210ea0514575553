// Package config 加载 xownctl 的配置文件。
//
// 支持 YAML 与 JSON（按扩展名识别），基于 koanf。
// 文件中缺省的字段保留 [Default] 的取值，命令行参数再覆盖文件。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	// ErrEmptyPath 表示配置文件路径为空。
	ErrEmptyPath = errors.New("config: empty config path")
	// ErrUnsupportedFormat 表示不支持的配置格式。
	ErrUnsupportedFormat = errors.New("config: unsupported config format")
	// ErrLoadFailed 表示读取配置文件失败。
	ErrLoadFailed = errors.New("config: failed to load config")
	// ErrParseFailed 表示配置解析失败。
	ErrParseFailed = errors.New("config: failed to parse config")
	// ErrInvalid 表示配置值不合法。
	ErrInvalid = errors.New("config: invalid value")
)

// Config 是 xownctl 的完整配置。
type Config struct {
	Soak Soak `koanf:"soak"`
	Log  Log  `koanf:"log"`
}

// Soak 配置并发压测。
type Soak struct {
	// Workers 并发 goroutine 数。
	Workers int `koanf:"workers"`
	// Rounds 轮数，每轮一个新资源。
	Rounds int `koanf:"rounds"`
	// Clones 每个 worker 每轮的复制/析构次数。
	Clones int `koanf:"clones"`
	// Keys 大于 0 时改为压测 xregistry，在 Keys 个 key 上并发 Get。
	Keys int `koanf:"keys"`
}

// Log 配置日志输出。File 为空时写 stderr，否则按大小轮转。
type Log struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		Soak: Soak{Workers: 8, Rounds: 100, Clones: 100},
		Log: Log{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load 从文件加载配置，缺省字段取默认值。
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return LoadBytes(data, format)
}

// LoadBytes 从字节数据加载配置。空数据得到默认配置。
func LoadBytes(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查配置取值。
func (c Config) Validate() error {
	var errs []error
	if c.Soak.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: soak.workers must be positive, got %d", ErrInvalid, c.Soak.Workers))
	}
	if c.Soak.Rounds <= 0 {
		errs = append(errs, fmt.Errorf("%w: soak.rounds must be positive, got %d", ErrInvalid, c.Soak.Rounds))
	}
	if c.Soak.Clones < 0 {
		errs = append(errs, fmt.Errorf("%w: soak.clones must not be negative, got %d", ErrInvalid, c.Soak.Clones))
	}
	if c.Soak.Keys < 0 {
		errs = append(errs, fmt.Errorf("%w: soak.keys must not be negative, got %d", ErrInvalid, c.Soak.Keys))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format))
	}
	return errors.Join(errs...)
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}
