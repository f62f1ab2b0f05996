// Package dnilist wires configuration and dependencies for the dnilist
// service binary.
package dnilist

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robdanz/tf-cf-dni-list/internal/allowlist"
	"github.com/robdanz/tf-cf-dni-list/internal/correlate"
	"github.com/robdanz/tf-cf-dni-list/internal/platform/config"
	platformotel "github.com/robdanz/tf-cf-dni-list/internal/platform/otel"
	"github.com/robdanz/tf-cf-dni-list/internal/server"
	"github.com/robdanz/tf-cf-dni-list/internal/storage"
	"github.com/robdanz/tf-cf-dni-list/internal/storage/bolt"
	"github.com/robdanz/tf-cf-dni-list/internal/storage/sqlite"
	"github.com/robdanz/tf-cf-dni-list/internal/telemetry"
)

// Store backend names accepted by DNI_LIST_STORE_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Pending-window bounds. The join window is configurable but a window
// outside this range defeats its purpose: too short misses slow joins,
// too long accumulates stale markers.
const (
	minPendingTTL = 5 * time.Minute
	maxPendingTTL = 10 * time.Minute
)

// Config holds the dnilist service configuration.
type Config struct {
	HTTPAddr        string
	IngestSecret    string
	PendingTTL      time.Duration
	FailureSentinel string
	StoreBackend    string
	StorePath       string
	Allowlist       allowlist.Config
}

// envConfig holds raw env values for the service configuration.
type envConfig struct {
	HTTPAddr           string        `env:"DNI_LIST_HTTP_ADDR"           envDefault:"localhost:8087"`
	IngestSecret       string        `env:"DNI_LIST_INGEST_SECRET"`
	PendingTTL         time.Duration `env:"DNI_LIST_PENDING_TTL"         envDefault:"5m"`
	FailureSentinel    string        `env:"DNI_LIST_FAILURE_SENTINEL"    envDefault:"certificate_pinned"`
	StoreBackend       string        `env:"DNI_LIST_STORE_BACKEND"       envDefault:"sqlite"`
	StorePath          string        `env:"DNI_LIST_STORE_PATH"          envDefault:"dnilist.db"`
	AllowlistBaseURL   string        `env:"DNI_LIST_ALLOWLIST_BASE_URL"`
	AllowlistAccountID string        `env:"DNI_LIST_ALLOWLIST_ACCOUNT_ID"`
	AllowlistListID    string        `env:"DNI_LIST_ALLOWLIST_LIST_ID"`
	AllowlistAPIToken  string        `env:"DNI_LIST_ALLOWLIST_API_TOKEN"`
	AllowlistTag       string        `env:"DNI_LIST_ALLOWLIST_TAG"       envDefault:"added by dnilist"`
}

// ParseConfig layers flag overrides on top of environment configuration.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var raw envConfig
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:        raw.HTTPAddr,
		IngestSecret:    raw.IngestSecret,
		PendingTTL:      raw.PendingTTL,
		FailureSentinel: raw.FailureSentinel,
		StoreBackend:    raw.StoreBackend,
		StorePath:       raw.StorePath,
		Allowlist: allowlist.Config{
			BaseURL:   raw.AllowlistBaseURL,
			AccountID: raw.AllowlistAccountID,
			ListID:    raw.AllowlistListID,
			APIToken:  raw.AllowlistAPIToken,
			Tag:       raw.AllowlistTag,
		},
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.StoreBackend, "store-backend", cfg.StoreBackend, "pending store backend (sqlite or bolt)")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "pending store file path")
	fs.DurationVar(&cfg.PendingTTL, "pending-ttl", cfg.PendingTTL, "join window for unmatched sessions")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.IngestSecret) == "" {
		return fmt.Errorf("DNI_LIST_INGEST_SECRET is required")
	}
	if cfg.PendingTTL < minPendingTTL || cfg.PendingTTL > maxPendingTTL {
		return fmt.Errorf("pending ttl %s is outside the %s-%s window", cfg.PendingTTL, minPendingTTL, maxPendingTTL)
	}
	switch cfg.StoreBackend {
	case BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return nil
}

// Run starts the dnilist service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	shutdownTracing, err := platformotel.Setup(ctx, "dnilist")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	var pending storage.PendingStore
	var telemetryStore storage.TelemetryStore
	switch cfg.StoreBackend {
	case BackendSQLite:
		store, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer store.Close()
		pending = store
		telemetryStore = store
	case BackendBolt:
		// Bolt keeps only pending state; batch telemetry is a no-op.
		store, err := bolt.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open bolt store: %w", err)
		}
		defer store.Close()
		pending = store
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	list, err := allowlist.NewHTTPClient(cfg.Allowlist)
	if err != nil {
		return fmt.Errorf("init allow-list client: %w", err)
	}

	engine := correlate.NewEngine(pending, list, correlate.Config{
		FailureSentinel: cfg.FailureSentinel,
		PendingTTL:      cfg.PendingTTL,
	})
	emitter := telemetry.NewEmitter(telemetryStore)

	srv, err := server.NewServer(server.Config{
		HTTPAddr:     cfg.HTTPAddr,
		IngestSecret: cfg.IngestSecret,
	}, engine, emitter)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve dnilist: %w", err)
	}
	return nil
}
