package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/repository"
)

const settingsKeyPrefix = "settings:"

// Settings reads and writes the runtime settings stored in system_config.
// When a Redis client is configured, reads go through a short-lived
// cache that is invalidated on every write; Redis failures fall back to
// the database.  The default capacity falls back to the configured
// value when no row exists.
type Settings struct {
	repo            *repository.SystemConfigRepo
	rdb             *redis.Client
	ttl             time.Duration
	defaultCapacity int
	logger          *slog.Logger
}

// NewSettings returns a Settings.  rdb may be nil to disable caching.
func NewSettings(repo *repository.SystemConfigRepo, rdb *redis.Client, ttl time.Duration, defaultCapacity int, logger *slog.Logger) *Settings {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Settings{repo: repo, rdb: rdb, ttl: ttl, defaultCapacity: defaultCapacity, logger: logger}
}

// DefaultCapacity returns the capacity used for days without a rule.
func (s *Settings) DefaultCapacity(ctx context.Context) (int, error) {
	v, ok, err := s.get(ctx, repository.ConfigDefaultCapacity)
	if err != nil || !ok {
		return s.defaultCapacity, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		s.log(ctx).Warn("ignoring malformed default capacity", "value", v)
		return s.defaultCapacity, nil
	}
	return n, nil
}

// SetDefaultCapacity stores a new default capacity.
func (s *Settings) SetDefaultCapacity(ctx context.Context, capacity int) error {
	if capacity < 0 {
		return newError(KindInvalidRequest, "capacity must not be negative")
	}
	return s.set(ctx, repository.ConfigDefaultCapacity, strconv.Itoa(capacity))
}

// EducationalReservationsEnabled reports whether EDUCATIONAL_INSTITUTION
// reservations are currently accepted.  Unset means enabled.
func (s *Settings) EducationalReservationsEnabled(ctx context.Context) (bool, error) {
	v, ok, err := s.get(ctx, repository.ConfigEducationalReservations)
	if err != nil || !ok {
		return true, err
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		s.log(ctx).Warn("ignoring malformed educational toggle", "value", v)
		return true, nil
	}
	return enabled, nil
}

// SetEducationalReservationsEnabled flips the institutional toggle.
func (s *Settings) SetEducationalReservationsEnabled(ctx context.Context, enabled bool) error {
	return s.set(ctx, repository.ConfigEducationalReservations, strconv.FormatBool(enabled))
}

func (s *Settings) get(ctx context.Context, key string) (string, bool, error) {
	if s.rdb != nil {
		v, err := s.rdb.Get(ctx, settingsKeyPrefix+key).Result()
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.log(ctx).Debug("settings cache read failed", "key", key, "error", err)
		}
	}
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if ok && s.rdb != nil {
		if err := s.rdb.Set(ctx, settingsKeyPrefix+key, v, s.ttl).Err(); err != nil {
			s.log(ctx).Debug("settings cache write failed", "key", key, "error", err)
		}
	}
	return v, ok, nil
}

func (s *Settings) set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, settingsKeyPrefix+key).Err(); err != nil {
			s.log(ctx).Warn("settings cache invalidation failed", "key", key, "error", err)
		}
	}
	return nil
}

func (s *Settings) log(ctx context.Context) *slog.Logger {
	return logging.Resolve(ctx, s.logger, "service", "settings")
}
