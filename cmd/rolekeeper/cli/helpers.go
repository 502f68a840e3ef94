package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/faucetdb/rolekeeper/internal/audit"
	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/dedup"
	"github.com/faucetdb/rolekeeper/internal/model"
	"github.com/faucetdb/rolekeeper/internal/service"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

const jwtSecretSetting = "auth.jwt_secret"

// resolveDataDir returns the data directory from --data-dir flag,
// ROLEKEEPER_DATA_DIR env var, or ~/.rolekeeper as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("ROLEKEEPER_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rolekeeper")
}

// envName maps a config key such as "auth.jwt_secret" to its environment
// variable, ROLEKEEPER_AUTH_JWT_SECRET.
func envName(key string) string {
	return "ROLEKEEPER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadConfig builds the effective configuration: defaults, then the config
// file viper found, then ROLEKEEPER_* environment variables.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyEnv(cfg)
	if cfg.Storage.DataDir == "" || dataDir != "" {
		cfg.Storage.DataDir = resolveDataDir()
	}
	return cfg, nil
}

func applyEnv(cfg *config.YAMLConfig) {
	strs := map[string]*string{
		"server.host":          &cfg.Server.Host,
		"server.max_body_size": &cfg.Server.MaxBodySize,
		"auth.jwt_secret":      &cfg.Auth.JWTSecret,
		"auth.jwt_expiry":      &cfg.Auth.JWTExpiry,
		"storage.driver":       &cfg.Storage.Driver,
		"storage.dsn":          &cfg.Storage.DSN,
		"dedup.backend":        &cfg.Dedup.Backend,
		"dedup.window":         &cfg.Dedup.Window,
		"dedup.redis_addr":     &cfg.Dedup.RedisAddr,
		"dedup.redis_password": &cfg.Dedup.RedisPassword,
		"audit.file":           &cfg.Audit.File,
		"logging.level":        &cfg.Logging.Level,
		"logging.format":       &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if _, ok := os.LookupEnv(envName(key)); ok {
			*dst = viper.GetString(key)
		}
	}
	if _, ok := os.LookupEnv(envName("server.port")); ok {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if _, ok := os.LookupEnv(envName("mcp.actor_id")); ok {
		cfg.MCP.ActorID = viper.GetInt64("mcp.actor_id")
	}
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays free for command output and the MCP stdio transport.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the admin store described by cfg.
func openStore(cfg *config.YAMLConfig) (*config.Store, error) {
	store, err := config.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open admin store: %w", err)
	}
	return store, nil
}

// newSuppressor builds the duplicate-request suppressor for cfg. The
// returned stop function releases its goroutine or connection.
func newSuppressor(ctx context.Context, cfg config.DedupConfig, logger *slog.Logger) (dedup.Suppressor, func(), error) {
	window := config.ParseDuration(cfg.Window, dedup.DefaultWindow)

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		m := dedup.NewMemory(
			dedup.WithWindow(window),
			dedup.WithSweepInterval(config.ParseDuration(cfg.SweepInterval, dedup.DefaultSweepInterval)),
		)
		m.Start()
		return m, m.Stop, nil

	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("dedup.redis_addr is required for the redis backend")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("duplicate suppression backed by redis", "addr", cfg.RedisAddr)
		return dedup.NewRedis(client, cfg.RedisPrefix, window), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported dedup backend %q", cfg.Backend)
	}
}

// newAuditSink writes to the store and, when audit.file is set, to a
// rotating JSONL file as well.
func newAuditSink(store *config.Store, cfg config.AuditConfig) (audit.Sink, func()) {
	storeSink := audit.NewStoreSink(store)
	if cfg.File == "" {
		return storeSink, func() {}
	}
	file := audit.NewFileSink(audit.FileConfig{
		Path:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	return audit.NewMulti(storeSink, file), func() { file.Close() }
}

// newEditService wires the Edit Service with its suppressor and audit sinks.
func newEditService(ctx context.Context, store *config.Store, cfg *config.YAMLConfig, logger *slog.Logger) (*service.EditService, func(), error) {
	suppressor, stopDedup, err := newSuppressor(ctx, cfg.Dedup, logger)
	if err != nil {
		return nil, nil, err
	}
	sink, closeAudit := newAuditSink(store, cfg.Audit)
	edits := service.NewEditService(store, suppressor, sink, service.WithLogger(logger))
	return edits, func() {
		stopDedup()
		closeAudit()
	}, nil
}

// resolveJWTSecret returns the configured secret, or the one persisted in
// the store's settings, generating and saving one on first use so sessions
// survive restarts.
func resolveJWTSecret(ctx context.Context, store *config.Store, cfg config.AuthConfig) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	secret, err := store.GetSetting(ctx, jwtSecretSetting)
	if err == nil && secret != "" {
		return secret, nil
	}
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		return "", fmt.Errorf("load session secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	secret = hex.EncodeToString(buf)
	if err := store.SetSetting(ctx, jwtSecretSetting, secret); err != nil {
		return "", fmt.Errorf("save session secret: %w", err)
	}
	return secret, nil
}

// loadActor resolves the admin a CLI or MCP session acts as. Edits require
// an active SuperAdmin, the same rule the HTTP API enforces.
func loadActor(ctx context.Context, store *config.Store, id int64) (*model.Admin, error) {
	if id <= 0 {
		return nil, errors.New("an acting admin is required (--actor <id>)")
	}
	actor, err := store.GetAdmin(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("acting admin %d does not exist", id)
		}
		return nil, err
	}
	if !actor.IsActive {
		return nil, fmt.Errorf("acting admin %d is disabled", id)
	}
	if !actor.IsSuperAdmin() {
		return nil, fmt.Errorf("acting admin %d is not a Super Admin", id)
	}
	return actor, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid admin id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
