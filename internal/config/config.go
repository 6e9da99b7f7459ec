package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	EgressMode string
	DryRun     bool
	MsgcatDir  string

	AllowedRooms []string

	TrainerPreset        string
	TrainerSessionTTLSec int
	TrainerHistoryLimit  int
	DuplicateChance      float64
	MathMin              int
	MathMax              int
	MemoImage            bool
	LeagueMemberLimit    int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EgressMode:           "auto",
		TrainerPreset:        "classic",
		TrainerSessionTTLSec: 259200,
		TrainerHistoryLimit:  10,
		DuplicateChance:      0.15,
		MathMin:              1000,
		MathMax:              9999,
		MemoImage:            true,
		LeagueMemberLimit:    16,
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("EGRESS_MODE")); v != "" {
		cfg.EgressMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DRY_RUN")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		}
	}
	cfg.MsgcatDir = strings.TrimSpace(os.Getenv("MSGCAT_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		parts := strings.Split(v, ",")
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				cfg.AllowedRooms = append(cfg.AllowedRooms, s)
			}
		}
	}

	// Trainer specific
	if v := strings.TrimSpace(os.Getenv("TRAINER_PRESET")); v != "" {
		cfg.TrainerPreset = v
	}
	if v := strings.TrimSpace(os.Getenv("TRAINER_SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TrainerSessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRAINER_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TrainerHistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DUP_CHANCE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.DuplicateChance = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("MATH_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MathMin = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MATH_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MathMax = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMO_IMAGE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MemoImage = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEAGUE_MEMBER_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			cfg.LeagueMemberLimit = n
		}
	}

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	if cfg.MathMax < cfg.MathMin {
		return nil, errors.New("MATH_MAX must be >= MATH_MIN")
	}

	return cfg, nil
}
