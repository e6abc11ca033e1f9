package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	Share  ShareConfig  `mapstructure:"share"`
	Backup BackupConfig `mapstructure:"backup"`
	Notify NotifyConfig `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	StateDir string `mapstructure:"state_dir"`
}

type MQTTConfig struct {
	Broker            string `mapstructure:"broker"`
	Port              int    `mapstructure:"port"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	ReconnectInterval int    `mapstructure:"reconnect_interval"`
	DiscoveryPrefix   string `mapstructure:"discovery_prefix"`
}

type ShareConfig struct {
	Remote        string `mapstructure:"remote"`
	MountPoint    string `mapstructure:"mount_point"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	CheckInterval int    `mapstructure:"check_interval"`
}

type BackupConfig struct {
	Device            string `mapstructure:"device"`
	Retain            int    `mapstructure:"retain"`
	Verify            bool   `mapstructure:"verify"`
	VerifySegments    int    `mapstructure:"verify_segments"`
	VerifySegmentSize int64  `mapstructure:"verify_segment_size"`
	Schedule          string `mapstructure:"schedule"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "blockward")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.state_dir", "/var/lib/blockward")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.reconnect_interval", 10)
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("share.check_interval", 60)
	v.SetDefault("backup.retain", 3)
	v.SetDefault("backup.verify", false)
	v.SetDefault("backup.verify_segments", 4)
	v.SetDefault("backup.verify_segment_size", 1024*1024)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Share.Remote == "" {
		return fmt.Errorf("share.remote is required")
	}
	if c.Share.MountPoint == "" {
		return fmt.Errorf("share.mount_point is required")
	}
	if c.Backup.Device == "" {
		return fmt.Errorf("backup.device is required")
	}
	if c.Backup.Retain < 0 {
		return fmt.Errorf("backup.retain must not be negative")
	}
	if c.Backup.VerifySegments < 1 {
		return fmt.Errorf("backup.verify_segments must be at least 1")
	}
	if c.Notify.Telegram.Enabled && c.Notify.Telegram.BotToken == "" {
		return fmt.Errorf("notify.telegram.bot_token is required when enabled")
	}
	return nil
}
