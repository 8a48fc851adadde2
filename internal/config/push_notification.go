package config

import "time"

type PushConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
}

func loadPushConfig() *PushConfig {
	return &PushConfig{
		Enabled:  getEnvAsBool("PUSH_ENABLED", false),
		Provider: getEnv("PUSH_PROVIDER", "fcm"),
		Timeout:  getEnvAsDuration("PUSH_TIMEOUT", 10*time.Second),
	}
}
