package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Sharing  SharingConfig  `mapstructure:"Sharing"`
}

type ServerConfig struct {
	Port string `mapstructure:"Port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type SharingConfig struct {
	SweepIntervalSeconds int    `mapstructure:"SweepIntervalSeconds"`
	MaxShareDurationDays int    `mapstructure:"MaxShareDurationDays"`
	WarnDurationDays     int    `mapstructure:"WarnDurationDays"`
	BusinessHoursOnly    bool   `mapstructure:"BusinessHoursOnly"`
	BusinessHoursStart   string `mapstructure:"BusinessHoursStart"`
	BusinessHoursEnd     string `mapstructure:"BusinessHoursEnd"`
	AuditRetentionDays   int    `mapstructure:"AuditRetentionDays"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Sharing.SweepIntervalSeconds", "SHARING_SWEEP_INTERVAL_SECONDS")
	v.BindEnv("Sharing.MaxShareDurationDays", "SHARING_MAX_DURATION_DAYS")
	v.BindEnv("Sharing.AuditRetentionDays", "SHARING_AUDIT_RETENTION_DAYS")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	// Значения по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Sharing.SweepIntervalSeconds <= 0 {
		cfg.Sharing.SweepIntervalSeconds = 60
	}
	if cfg.Sharing.MaxShareDurationDays <= 0 {
		cfg.Sharing.MaxShareDurationDays = 365
	}
	if cfg.Sharing.WarnDurationDays <= 0 {
		cfg.Sharing.WarnDurationDays = 90
	}
	if cfg.Sharing.AuditRetentionDays <= 0 {
		cfg.Sharing.AuditRetentionDays = 365
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

func (c *SharingConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *SharingConfig) MaxShareDuration() time.Duration {
	return time.Duration(c.MaxShareDurationDays) * 24 * time.Hour
}

func (c *SharingConfig) WarnDuration() time.Duration {
	return time.Duration(c.WarnDurationDays) * 24 * time.Hour
}
