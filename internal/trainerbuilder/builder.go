package trainerbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/Memo-KakaoTalk-bot/internal/config"
	"github.com/park285/Memo-KakaoTalk-bot/internal/league"
	"github.com/park285/Memo-KakaoTalk-bot/internal/msgcat"
	"github.com/park285/Memo-KakaoTalk-bot/internal/service/cache"
	"github.com/park285/Memo-KakaoTalk-bot/internal/service/trainer"
	"go.uber.org/zap"
)

// Deps bundles the trainer wiring for cmd binaries. The builder owns the
// database pool and the Redis client; Close releases both.
type Deps struct {
	Service *trainer.Service
	League  *league.Manager
	Cache   *cache.CacheService
	Repo    trainer.Repository
	Catalog *msgcat.Catalog

	db *sql.DB
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Sessions, profile cache and league state live in Redis.
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for trainer sessions")
	}
	cconf, err := parseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cacheSvc, err := cache.NewCacheService(*cconf, logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	// Postgres keeps finished rounds and profiles. Without DATABASE_URL the
	// bot runs on the in-memory repository and history does not survive a
	// restart.
	var (
		repo trainer.Repository
		db   *sql.DB
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo = trainer.NewRepository(db)
	} else {
		logger.Info("DATABASE_URL not set, keeping rounds in memory")
		repo = trainer.NewMemoryRepository()
	}

	svcCfg := trainer.Config{
		DefaultPreset:   cfg.TrainerPreset,
		SessionTTL:      time.Duration(cfg.TrainerSessionTTLSec) * time.Second,
		HistoryLimit:    cfg.TrainerHistoryLimit,
		AllowedRooms:    append([]string(nil), cfg.AllowedRooms...),
		DuplicateChance: cfg.DuplicateChance,
		MathMin:         cfg.MathMin,
		MathMax:         cfg.MathMax,
		MemoImage:       cfg.MemoImage,
	}

	service, err := trainer.NewService(cacheSvc, repo, trainer.NewMemoCardRenderer(), svcCfg, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := msgcat.New(cfg.MsgcatDir)
	if err != nil {
		return nil, fmt.Errorf("load message catalog: %w", err)
	}

	leagues := league.NewManager(cacheSvc.Client(), repo, cfg.LeagueMemberLimit)

	return &Deps{
		Service: service,
		League:  leagues,
		Cache:   cacheSvc,
		Repo:    repo,
		Catalog: catalog,
		db:      db,
	}, nil
}

// Close releases the database pool and the Redis client.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var firstErr error
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		db, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad redis db index %q", p)
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
