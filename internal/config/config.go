package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"namecache/internal/models"
)

// Config 全局配置
type Config struct {
	Names    NamesConfig    `mapstructure:"names"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	System   SystemConfig   `mapstructure:"system"`
}

// NamesConfig 名字显示配置
type NamesConfig struct {
	Mode        string        `mapstructure:"mode"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
	MaxAge      time.Duration `mapstructure:"max_age"` // 加载缓存时显示名记录的最大年龄
}

// DisplayMode 解析显示模式
func (n NamesConfig) DisplayMode() (models.DisplayMode, error) {
	return models.ParseDisplayMode(n.Mode)
}

// ResolverConfig 批量解析配置
type ResolverConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	BatchWindow  time.Duration `mapstructure:"batch_window"`
	RateCapacity int           `mapstructure:"rate_capacity"`
	RateRefill   int           `mapstructure:"rate_refill"`
	RatePeriod   time.Duration `mapstructure:"rate_period"`
	Backoff      time.Duration `mapstructure:"backoff"`
	MaxInflight  int           `mapstructure:"max_inflight"`
}

// CacheConfig 持久化缓存配置
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // file 或 mysql
	Path          string        `mapstructure:"path"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// DatabaseConfig 数据库配置（cache.backend=mysql 时使用）
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	Charset         string `mapstructure:"charset"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
}

// RemoteConfig 远程名字服务配置
type RemoteConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DisplayNames bool          `mapstructure:"display_names"` // 能力探测失败时使用的默认值
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	LogDir      string `mapstructure:"log_dir"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// Default 不读取文件，只使用默认值
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		// 默认值固定，解析不会失败
		panic(err)
	}
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := cfg.Names.DisplayMode(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("names.mode", models.ModeSmart.String())
	v.SetDefault("names.wait_timeout", 5*time.Second)
	v.SetDefault("names.max_age", 48*time.Hour)

	v.SetDefault("resolver.batch_size", 100)
	v.SetDefault("resolver.batch_window", 100*time.Millisecond)
	v.SetDefault("resolver.rate_capacity", 20)
	v.SetDefault("resolver.rate_refill", 5)
	v.SetDefault("resolver.rate_period", time.Second)
	v.SetDefault("resolver.backoff", time.Second)
	v.SetDefault("resolver.max_inflight", 4)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "name.cache")
	v.SetDefault("cache.flush_interval", 30*time.Second)

	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 1800)
	v.SetDefault("database.conn_max_idle_time", 600)

	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.display_names", true)

	v.SetDefault("system.log_level", "info")
	v.SetDefault("system.log_dir", "logs")
}
