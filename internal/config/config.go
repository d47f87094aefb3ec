package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"

	ArchiveFile   = "file"
	ArchiveSQLite = "sqlite"
	ArchiveBolt   = "bolt"
)

// Config holds application configuration
type Config struct {
	// Model server
	ModelBackend  string `toml:"model_backend"`  // ollama|openai wire format
	ModelBaseURL  string `toml:"model_base_url"` // e.g. http://localhost:11434
	Model         string `toml:"model"`          // preferred model, empty = stored preference or first listed
	FallbackModel string `toml:"fallback_model"` // used for title prediction when no model is active

	// Vector search
	VectorSearchBaseURL string `toml:"vector_search_base_url"`
	ScopedSearchPath    string `toml:"scoped_search_path"`
	RouterSearchPath    string `toml:"router_search_path"`
	RouterDocumentGUID  string `toml:"router_document_guid"` // default corpus for router search

	// Persistence
	ArchiveURL       string `toml:"archive_url"` // persistence backend, empty = local file store
	ArchiveBackend   string `toml:"archive_backend"`
	ConversationsDir string `toml:"conversations_dir"`
	ArchiveDBPath    string `toml:"archive_db_path"` // sqlite or bolt file
	CatalogDBPath    string `toml:"catalog_db_path"` // system instructions and preferences

	// Title cache, Redis when RedisAddr is set
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	TitleCacheTTL int    `toml:"title_cache_ttl_seconds"`

	// Terminal client
	RenderMarkdown bool   `toml:"render_markdown"`
	Conversation   string `toml:"conversation"` // conversation file to open at start

	// Server
	ListenAddr     string   `toml:"listen_addr"`
	AllowedOrigins []string `toml:"allowed_origins"`

	LogDir string `toml:"log_dir"`
	Debug  bool   `toml:"debug"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		ModelBackend:        BackendOllama,
		ModelBaseURL:        "http://localhost:11434",
		FallbackModel:       "llama3.2",
		VectorSearchBaseURL: "http://localhost:8000",
		ScopedSearchPath:    "/v1/search/documents",
		RouterSearchPath:    "/v1/search/router",
		RouterDocumentGUID:  "default",
		ArchiveBackend:      ArchiveFile,
		ConversationsDir:    "conversations",
		ArchiveDBPath:       "conversations.db",
		CatalogDBPath:       "ragchat.db",
		TitleCacheTTL:       3600,
		ListenAddr:          ":8080",
		LogDir:              "logs",
	}
}

// Load builds a Config from defaults, an optional TOML file, a .env file
// and the process environment, in that order. Callers apply their own
// overrides and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to load .env file", "error", err)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.ModelBaseURL = getEnv("OLLAMA_BASEURL", c.ModelBaseURL)
	c.VectorSearchBaseURL = getEnv("VECTOR_SEARCH_BASEURL", c.VectorSearchBaseURL)
	c.ModelBackend = getEnv("RAGCHAT_MODEL_BACKEND", c.ModelBackend)
	c.Model = getEnv("RAGCHAT_MODEL", c.Model)
	c.RouterDocumentGUID = getEnv("RAGCHAT_ROUTER_DOCUMENT_GUID", c.RouterDocumentGUID)
	c.ArchiveURL = getEnv("RAGCHAT_ARCHIVE_URL", c.ArchiveURL)
	c.ArchiveBackend = getEnv("RAGCHAT_ARCHIVE_BACKEND", c.ArchiveBackend)
	c.ConversationsDir = getEnv("RAGCHAT_CONVERSATIONS_DIR", c.ConversationsDir)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.TitleCacheTTL = getEnvAsInt("RAGCHAT_TITLE_CACHE_TTL", c.TitleCacheTTL)
	c.ListenAddr = getEnv("RAGCHAT_LISTEN_ADDR", c.ListenAddr)
	if origins := getEnv("RAGCHAT_ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}
}

// Validate checks that the values needed to reach the collaborators are present.
func (c *Config) Validate() error {
	var problems []string

	switch c.ModelBackend {
	case BackendOllama, BackendOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("unknown model_backend %q (ollama|openai)", c.ModelBackend))
	}
	switch c.ArchiveBackend {
	case ArchiveFile, ArchiveSQLite, ArchiveBolt:
	default:
		problems = append(problems, fmt.Sprintf("unknown archive_backend %q (file|sqlite|bolt)", c.ArchiveBackend))
	}
	if c.ModelBaseURL == "" {
		problems = append(problems, "model_base_url is required")
	}
	if c.VectorSearchBaseURL == "" {
		problems = append(problems, "vector_search_base_url is required")
	}
	if c.TitleCacheTTL < 0 {
		problems = append(problems, "title_cache_ttl_seconds must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// getEnv retrieves the value of the environment variable named by the key.
// If the variable is not present, the defaultValue is returned.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
