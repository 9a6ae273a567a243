// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/boom/internal/game"
)

// Config holds every environment-level knob of the server. Load fills it from
// the process environment; cmd/server autoloads a .env file first.
type Config struct {
	Port           int
	AllowedOrigins []string

	MinPlayers        int
	MaxPlayers        int
	DefaultMaxPlayers int

	TurnDuration      time.Duration // 0 disables the idle-turn timer
	DisconnectGrace   time.Duration
	HeartbeatInterval time.Duration

	OutboundQueue   int
	OutboundStrikes int

	HandSize         int
	RoundLimit       int // 0 => unlimited
	ScoreLimit       int
	ChallengePenalty int

	RedisAddr   string
	RedisDB     int
	OutboxQueue string

	DatabaseURL   string
	AuthPublicKey string

	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Port:              8080,
		AllowedOrigins:    []string{"*"},
		MinPlayers:        2,
		MaxPlayers:        10,
		DefaultMaxPlayers: 4,
		TurnDuration:      0,
		DisconnectGrace:   60 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		OutboundQueue:     64,
		OutboundStrikes:   3,
		HandSize:          7,
		RoundLimit:        0,
		ScoreLimit:        500,
		ChallengePenalty:  2,
		OutboxQueue:       "boom_game_events",
		LogLevel:          "info",
		LogFormat:         "text",
		ShutdownTimeout:   15 * time.Second,
	}
}

// Load reads the environment on top of Default and validates the result.
func Load() (Config, error) {
	c := Default()
	var err error

	if c.Port, err = getEnvInt("PORT", c.Port); err != nil {
		return c, err
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if c.MinPlayers, err = getEnvInt("MIN_PLAYERS", c.MinPlayers); err != nil {
		return c, err
	}
	if c.MaxPlayers, err = getEnvInt("MAX_PLAYERS", c.MaxPlayers); err != nil {
		return c, err
	}
	if c.DefaultMaxPlayers, err = getEnvInt("DEFAULT_MAX_PLAYERS", c.DefaultMaxPlayers); err != nil {
		return c, err
	}
	if c.TurnDuration, err = getEnvDuration("TURN_DURATION", c.TurnDuration); err != nil {
		return c, err
	}
	if c.DisconnectGrace, err = getEnvDuration("DISCONNECT_GRACE", c.DisconnectGrace); err != nil {
		return c, err
	}
	if c.HeartbeatInterval, err = getEnvDuration("HEARTBEAT_INTERVAL", c.HeartbeatInterval); err != nil {
		return c, err
	}
	if c.OutboundQueue, err = getEnvInt("OUTBOUND_QUEUE", c.OutboundQueue); err != nil {
		return c, err
	}
	if c.OutboundStrikes, err = getEnvInt("OUTBOUND_STRIKES", c.OutboundStrikes); err != nil {
		return c, err
	}
	if c.HandSize, err = getEnvInt("HAND_SIZE", c.HandSize); err != nil {
		return c, err
	}
	if c.RoundLimit, err = getEnvInt("ROUND_LIMIT", c.RoundLimit); err != nil {
		return c, err
	}
	if c.ScoreLimit, err = getEnvInt("SCORE_LIMIT", c.ScoreLimit); err != nil {
		return c, err
	}
	if c.ChallengePenalty, err = getEnvInt("CHALLENGE_PENALTY", c.ChallengePenalty); err != nil {
		return c, err
	}
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return c, err
	}
	c.OutboxQueue = getEnv("OUTBOX_QUEUE", c.OutboxQueue)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.AuthPublicKey = getEnv("AUTH_PUBLIC_KEY", c.AuthPublicKey)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	if c.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return c, err
	}

	return c, c.Validate()
}

// Validate checks the cross-field bounds.
func (c Config) Validate() error {
	if c.MinPlayers < 2 {
		return fmt.Errorf("MIN_PLAYERS must be at least 2, got %d", c.MinPlayers)
	}
	if c.MaxPlayers > 10 || c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("MAX_PLAYERS must be between MIN_PLAYERS and 10, got %d", c.MaxPlayers)
	}
	if c.DefaultMaxPlayers < c.MinPlayers || c.DefaultMaxPlayers > c.MaxPlayers {
		return fmt.Errorf("DEFAULT_MAX_PLAYERS must be within [%d, %d], got %d", c.MinPlayers, c.MaxPlayers, c.DefaultMaxPlayers)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.OutboundQueue < 1 || c.OutboundStrikes < 1 {
		return fmt.Errorf("OUTBOUND_QUEUE and OUTBOUND_STRIKES must be positive")
	}
	if c.HandSize < 1 {
		return fmt.Errorf("HAND_SIZE must be positive")
	}
	if err := (game.HouseRules{HandSize: c.HandSize}).CheckDeal(c.MaxPlayers); err != nil {
		return fmt.Errorf("HAND_SIZE too large for MAX_PLAYERS: %w", err)
	}
	if c.TurnDuration < 0 || c.DisconnectGrace < 0 {
		return fmt.Errorf("TURN_DURATION and DISCONNECT_GRACE must not be negative")
	}
	return nil
}

// Addr is the listen address for net/http.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer.
func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
