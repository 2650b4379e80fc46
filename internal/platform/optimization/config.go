// Package optimization provides buffer, pool and rate tuning presets.
package optimization

import (
	"runtime"
	"strings"
)

// Config holds tuned parameters for a load profile.
type Config struct {
	// Event log retention
	EventLogCapacity int

	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pool. SQLite allows a single writer.
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Rate limiting
	MaxMessagesPerSecond int
	MaxClients           int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	return &Config{
		EventLogCapacity:       4096,
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,

		MaxMessagesPerSecond: 10,
		MaxClients:           200,
	}
}

// StressTestConfig returns aggressive settings for stress testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		EventLogCapacity:       16384 * numCPU,
		BroadcastChannelBuffer: 1024,
		ClientSendBuffer:       256,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,

		MaxMessagesPerSecond: 500,
		MaxClients:           1000,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		EventLogCapacity:       512,
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,

		MaxMessagesPerSecond: 5,
		MaxClients:           20,
	}
}

// ForProfile returns the preset with the given name, DefaultConfig if unknown.
func ForProfile(name string) *Config {
	switch strings.ToLower(name) {
	case "stress":
		return StressTestConfig()
	case "low":
		return LowResourceConfig()
	default:
		return DefaultConfig()
	}
}
