package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the viewer and the collaborator
// daemon.
type Config struct {
	API    APIConfig
	Room   RoomConfig
	Viewer ViewerConfig
	Server ServerConfig
}

type APIConfig struct {
	BaseURL string
}

type RoomConfig struct {
	URL string
}

type ViewerConfig struct {
	SelfName        string
	AgentName       string
	BroadcastDelta  float64
	PersistInterval time.Duration
}

type ServerConfig struct {
	ListenAddr string
	DataDir    string
	JWTSecret  string
	TokenTTL   time.Duration
}

// Load resolves configuration from environment variables and sensible
// defaults.
func Load() (Config, error) {
	cfg := Config{
		API: APIConfig{
			BaseURL: envOrDefault("BRDGE_API_BASE", "http://localhost:8095"),
		},
		Room: RoomConfig{
			URL: envOrDefault("BRDGE_ROOM_URL", "http://localhost:8095"),
		},
		Viewer: ViewerConfig{
			SelfName:        envOrDefault("BRDGE_SELF_NAME", "You"),
			AgentName:       envOrDefault("BRDGE_AGENT_NAME", "Brdge AI"),
			BroadcastDelta:  envOrDefaultFloat("BRDGE_BROADCAST_DELTA", 0.7),
			PersistInterval: time.Duration(envOrDefaultInt("BRDGE_PERSIST_DEBOUNCE_MS", 1000)) * time.Millisecond,
		},
		Server: ServerConfig{
			ListenAddr: envOrDefault("BRDGE_LISTEN_ADDR", ":8095"),
			DataDir:    envOrDefault("BRDGE_DATA_DIR", "./data"),
			JWTSecret:  strings.TrimSpace(os.Getenv("BRDGE_JWT_SECRET")),
			TokenTTL:   time.Duration(envOrDefaultInt("BRDGE_TOKEN_TTL_MINUTES", 120)) * time.Minute,
		},
	}

	if cfg.Viewer.BroadcastDelta <= 0 {
		cfg.Viewer.BroadcastDelta = 0.7
	}
	if cfg.Viewer.PersistInterval <= 0 {
		cfg.Viewer.PersistInterval = time.Second
	}
	if cfg.Server.TokenTTL <= 0 {
		cfg.Server.TokenTTL = 2 * time.Hour
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
