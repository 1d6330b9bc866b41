package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Auth       AuthConfig       `yaml:"auth"`
	Stream     StreamConfig     `yaml:"stream"`
	Session    SessionConfig    `yaml:"session"`
	Transition TransitionConfig `yaml:"transition"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int `yaml:"idle_timeout_sec"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// StreamConfig bounds the retained per-tenant event tail. A reconnecting
// display asking for history older than the tail gets a full resync instead.
type StreamConfig struct {
	Retention int `yaml:"retention"`
}

type SessionConfig struct {
	BacklogSize          int             `yaml:"backlog_size"`
	HeartbeatIntervalSec int             `yaml:"heartbeat_interval_sec"`
	HeartbeatTimeoutSec  int             `yaml:"heartbeat_timeout_sec"`
	WriteTimeoutMs       int             `yaml:"write_timeout_ms"`
	ResumeGraceSec       int             `yaml:"resume_grace_sec"`
	Reconnect            ReconnectConfig `yaml:"reconnect"`
}

func (c SessionConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c SessionConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSec) * time.Second
}

func (c SessionConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c SessionConfig) ResumeGrace() time.Duration {
	return time.Duration(c.ResumeGraceSec) * time.Second
}

// ReconnectConfig is the client-facing reconnect contract. The server sends
// it in the handshake response so clients never hardcode cadence or jitter.
// Exact values are operational tuning, not fixed by design.
type ReconnectConfig struct {
	BaseIntervalMs    int     `yaml:"base_interval_ms" json:"base_interval_ms"`
	Multiplier        float64 `yaml:"multiplier" json:"multiplier"`
	MaxIntervalMs     int     `yaml:"max_interval_ms" json:"max_interval_ms"`
	JitterFraction    float64 `yaml:"jitter_fraction" json:"jitter_fraction"`
	StabilityResetSec int     `yaml:"stability_reset_sec" json:"stability_reset_sec"`
}

type TransitionConfig struct {
	StoreTimeoutSec    int    `yaml:"store_timeout_sec"`
	SweepSchedule      string `yaml:"sweep_schedule"`
	SweepPendingAgeSec int    `yaml:"sweep_pending_age_sec"`
	SweepBatchLimit    int    `yaml:"sweep_batch_limit"`
}

func (c TransitionConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSec) * time.Second
}

func (c TransitionConfig) SweepPendingAge() time.Duration {
	return time.Duration(c.SweepPendingAgeSec) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
			IdleTimeoutSec:  60,
		},
		Stream: StreamConfig{
			Retention: 256,
		},
		Session: SessionConfig{
			BacklogSize:          64,
			HeartbeatIntervalSec: 15,
			HeartbeatTimeoutSec:  45,
			WriteTimeoutMs:       5000,
			ResumeGraceSec:       30,
			Reconnect: ReconnectConfig{
				BaseIntervalMs:    1000,
				Multiplier:        2.0,
				MaxIntervalMs:     30000,
				JitterFraction:    0.3,
				StabilityResetSec: 60,
			},
		},
		Transition: TransitionConfig{
			StoreTimeoutSec:    5,
			SweepSchedule:      "*/5 * * * * *",
			SweepPendingAgeSec: 3,
			SweepBatchLimit:    100,
		},
	}
}
