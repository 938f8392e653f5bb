package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"HQLPreview/internal/hql"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`    // 服务器配置
	Database  DatabaseConfig  `mapstructure:"database"`  // 元数据库配置
	Redis     RedisConfig     `mapstructure:"redis"`     // 共享 HQL 缓存
	Generator GeneratorConfig `mapstructure:"generator"` // 生成引擎配置
	Log       LogConfig       `mapstructure:"log"`       // 日志配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int      `mapstructure:"port"`         // 服务端口
	Mode        string   `mapstructure:"mode"`         // Gin运行模式：debug/release/test
	CORSOrigins []string `mapstructure:"cors_origins"` // 允许跨域的前端地址，为空时不启用
}

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogLevel        string        `mapstructure:"log_level"`         // gorm 日志级别：silent/error/warn/info
	AutoMigrate     bool          `mapstructure:"auto_migrate"`      // 启动时是否建表
}

// RedisConfig 为空地址时不启用共享缓存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"` // HQL 保存时长
}

// GeneratorConfig 生成引擎配置
type GeneratorConfig struct {
	CacheCapacity         int      `mapstructure:"cache_capacity"`
	PartitionVar          string   `mapstructure:"partition_var"`
	SQLMode               string   `mapstructure:"sql_mode"`
	JoinKey               string   `mapstructure:"join_key"`
	JoinType              string   `mapstructure:"join_type"`
	EventColumn           string   `mapstructure:"event_column"`
	ParamsColumn          string   `mapstructure:"params_column"`
	BaseColumns           []string `mapstructure:"base_columns"`
	AllowLegacyFieldNames bool     `mapstructure:"allow_legacy_field_names"`
	EnableIncremental     bool     `mapstructure:"enable_incremental"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug/info/warn/error
	Format string `mapstructure:"format"` // text/json
}

func setDefaults(v *viper.Viper) {
	d := hql.DefaultGeneratorConfig()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("generator.cache_capacity", d.CacheCapacity)
	v.SetDefault("generator.partition_var", d.PartitionVar)
	v.SetDefault("generator.sql_mode", d.SQLMode)
	v.SetDefault("generator.join_key", d.JoinKey)
	v.SetDefault("generator.join_type", d.JoinType)
	v.SetDefault("generator.event_column", d.EventColumn)
	v.SetDefault("generator.params_column", d.ParamsColumn)
	v.SetDefault("generator.base_columns", d.BaseColumns)
	v.SetDefault("generator.allow_legacy_field_names", d.AllowLegacyFieldNames)
	v.SetDefault("generator.enable_incremental", d.EnableIncremental)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig 加载配置文件（默认 config/config.yaml，HQL_CONFIG 可指定路径），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）
	return Load(os.Getenv("HQL_CONFIG"))
}

// Load 读取指定配置文件，path 为空时在 ./config 下查找 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.SetTypeByDefaultValue(true)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// ToEngineConfig 转换为生成引擎配置
func (g GeneratorConfig) ToEngineConfig() hql.GeneratorConfig {
	return hql.GeneratorConfig{
		CacheCapacity:         g.CacheCapacity,
		PartitionVar:          g.PartitionVar,
		SQLMode:               g.SQLMode,
		JoinKey:               g.JoinKey,
		JoinType:              g.JoinType,
		EventColumn:           g.EventColumn,
		ParamsColumn:          g.ParamsColumn,
		BaseColumns:           g.BaseColumns,
		AllowLegacyFieldNames: g.AllowLegacyFieldNames,
		EnableIncremental:     g.EnableIncremental,
	}
}

// GetGORMConfig 按 log_level 生成 gorm 配置
func (d *DatabaseConfig) GetGORMConfig() *gorm.Config {
	level := logger.Warn
	switch strings.ToLower(d.LogLevel) {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "info":
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}

// NewLogger 按配置创建 logrus 日志器，未知级别按 info 处理
func (l LogConfig) NewLogger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(l.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
