// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/circle-gon/nyigj-2024/server/internal/platform/optimization"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Loop    LoopConfig    `yaml:"loop" json:"loop"`
	Network NetworkConfig `yaml:"network" json:"network"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type StorageConfig struct {
	Path             string        `yaml:"path" json:"path"`
	SaveID           string        `yaml:"save_id" json:"save_id"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" json:"autosave_interval"`
}

type LoopConfig struct {
	TickRate time.Duration `yaml:"tick_rate" json:"tick_rate"`
	// MaxTickLength caps a single tick's delta, in seconds.
	MaxTickLength float64 `yaml:"max_tick_length" json:"max_tick_length"`
	DevSpeed      float64 `yaml:"dev_speed" json:"dev_speed"`
}

type NetworkConfig struct {
	Profile           string        `yaml:"profile" json:"profile"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" json:"broadcast_interval"`
	// Zero values fall back to the profile.
	ClientSendBuffer     int `yaml:"client_send_buffer" json:"client_send_buffer"`
	MaxMessagesPerSecond int `yaml:"max_messages_per_second" json:"max_messages_per_second"`
	MaxClients           int `yaml:"max_clients" json:"max_clients"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads path, applies defaults and then environment overrides. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.ApplyDefaults()
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyDefaults fills every zero field.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/studio.db"
	}
	if c.Storage.SaveID == "" {
		c.Storage.SaveID = "SAVE_1"
	}
	if c.Storage.AutosaveInterval == 0 {
		c.Storage.AutosaveInterval = 5 * time.Second
	}
	if c.Loop.TickRate == 0 {
		c.Loop.TickRate = 50 * time.Millisecond
	}
	if c.Loop.MaxTickLength == 0 {
		c.Loop.MaxTickLength = 3600
	}
	if c.Loop.DevSpeed == 0 {
		c.Loop.DevSpeed = 1
	}
	if c.Network.BroadcastInterval == 0 {
		c.Network.BroadcastInterval = 100 * time.Millisecond
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// ApplyEnv overrides fields from STUDIO_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("STUDIO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("STUDIO_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("STUDIO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getEnvFloat("STUDIO_DEV_SPEED"); v > 0 {
		c.Loop.DevSpeed = v
	}
}

// Validate rejects settings the loop cannot run with.
func (c *Config) Validate() error {
	if c.Loop.TickRate < 0 || c.Network.BroadcastInterval < 0 || c.Storage.AutosaveInterval < 0 {
		return errors.New("config: intervals must be positive")
	}
	if !finite(c.Loop.MaxTickLength) || !finite(c.Loop.DevSpeed) {
		return errors.New("config: max_tick_length and dev_speed must be finite")
	}
	if c.Loop.MaxTickLength < 0 || c.Loop.DevSpeed < 0 {
		return errors.New("config: max_tick_length and dev_speed must be positive")
	}
	return nil
}

// Tuning merges the network profile with any explicit overrides.
func (c *Config) Tuning() *optimization.Config {
	t := optimization.ForProfile(c.Network.Profile)
	if c.Network.ClientSendBuffer > 0 {
		t.ClientSendBuffer = c.Network.ClientSendBuffer
	}
	if c.Network.MaxMessagesPerSecond > 0 {
		t.MaxMessagesPerSecond = c.Network.MaxMessagesPerSecond
	}
	if c.Network.MaxClients > 0 {
		t.MaxClients = c.Network.MaxClients
	}
	return t
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func getEnvFloat(key string) float64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return num
}
