package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	Env         string // "development" or "production"
	DatabaseURL string
	DefaultRoom string

	TickHz      int
	BroadcastHz int
	StartDelay  time.Duration
	MinPlayers  int
	MaxPlayers  int

	MaxHealth      float64
	BulletDamage   float64
	BulletLifetime time.Duration
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		Env:            "development",
		DefaultRoom:    "Room1",
		TickHz:         30,
		BroadcastHz:    10,
		StartDelay:     5 * time.Second,
		MinPlayers:     2,
		MaxPlayers:     8,
		MaxHealth:      100,
		BulletDamage:   20,
		BulletLifetime: 5 * time.Second,
	}
}

// Load reads .env files (missing ones are fine) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Default()
	var err error

	c.Addr = str("ADDR", c.Addr)
	c.Env = str("APP_ENV", c.Env)
	c.DatabaseURL = str("DATABASE_URL", c.DatabaseURL)
	c.DefaultRoom = str("DEFAULT_ROOM", c.DefaultRoom)

	if c.TickHz, err = integer("TICK_HZ", c.TickHz); err != nil {
		return Config{}, err
	}
	if c.BroadcastHz, err = integer("BROADCAST_HZ", c.BroadcastHz); err != nil {
		return Config{}, err
	}
	if c.StartDelay, err = duration("START_DELAY", c.StartDelay); err != nil {
		return Config{}, err
	}
	if c.MinPlayers, err = integer("MIN_PLAYERS", c.MinPlayers); err != nil {
		return Config{}, err
	}
	if c.MaxPlayers, err = integer("MAX_PLAYERS", c.MaxPlayers); err != nil {
		return Config{}, err
	}
	if c.MaxHealth, err = float("MAX_HEALTH", c.MaxHealth); err != nil {
		return Config{}, err
	}
	if c.BulletDamage, err = float("BULLET_DAMAGE", c.BulletDamage); err != nil {
		return Config{}, err
	}
	if c.BulletLifetime, err = duration("BULLET_LIFETIME", c.BulletLifetime); err != nil {
		return Config{}, err
	}

	return c, c.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.TickHz <= 0:
		return fmt.Errorf("TICK_HZ must be positive, got %d", c.TickHz)
	case c.BroadcastHz <= 0 || c.BroadcastHz > c.TickHz:
		return fmt.Errorf("BROADCAST_HZ must be in 1..%d, got %d", c.TickHz, c.BroadcastHz)
	case c.MinPlayers < 1:
		return fmt.Errorf("MIN_PLAYERS must be at least 1, got %d", c.MinPlayers)
	case c.MaxPlayers < c.MinPlayers:
		return fmt.Errorf("MAX_PLAYERS (%d) below MIN_PLAYERS (%d)", c.MaxPlayers, c.MinPlayers)
	case c.MaxHealth <= 0:
		return fmt.Errorf("MAX_HEALTH must be positive")
	case c.BulletDamage <= 0:
		return fmt.Errorf("BULLET_DAMAGE must be positive")
	case c.BulletLifetime <= 0:
		return fmt.Errorf("BULLET_LIFETIME must be positive")
	case c.StartDelay < 0:
		return fmt.Errorf("START_DELAY must not be negative")
	}
	return nil
}

func (c Config) Production() bool { return c.Env == "production" }

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func integer(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func float(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
