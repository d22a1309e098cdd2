// Package ratelimit enforces temporary lockout of failed
// authentication attempts. Counters live in the shared store keyed by
// scope + identity + client IP, so lockouts survive restarts and are
// shared across instances. The check-then-register sequence is not
// locked; one extra attempt under concurrent requests from the same
// key is an accepted approximation.
package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"experts-service/internal/model"
)

// Policy sets the window algebra for a limiter.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

// Result of a Check call.
type Result struct {
	Allowed           bool
	RetryAfterSeconds int
}

// Limiter tracks failed attempts per key against the shared store.
type Limiter struct {
	db     *gorm.DB
	policy Policy
	now    func() time.Time
}

// New creates a limiter over the given store handle.
func New(db *gorm.DB, policy Policy) *Limiter {
	return &Limiter{db: db, policy: policy, now: time.Now}
}

// Check must be called before any credential comparison. A blocked
// key is rejected without touching the password service at all.
func (l *Limiter) Check(key string) (Result, error) {
	now := l.now().UnixMilli()

	var rec model.AuthRateLimit
	err := l.db.Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{Allowed: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("rate limit lookup failed: %w", err)
	}

	if rec.BlockedUntil > now {
		retry := (rec.BlockedUntil - now + 999) / 1000
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, RetryAfterSeconds: int(retry)}, nil
	}

	// A window that aged out without reaching the cap resets; the
	// next failure starts fresh.
	if now-rec.WindowStartedAt > l.policy.Window.Milliseconds() {
		if err := l.db.Delete(&model.AuthRateLimit{}, "key = ?", key).Error; err != nil {
			return Result{}, fmt.Errorf("rate limit reset failed: %w", err)
		}
	}

	return Result{Allowed: true}, nil
}

// RegisterFailure counts a failed attempt and reports whether the key
// just crossed into a block.
func (l *Limiter) RegisterFailure(key string) (blockedNow bool, retryAfterSeconds int, err error) {
	now := l.now().UnixMilli()

	var rec model.AuthRateLimit
	lookupErr := l.db.Where("key = ?", key).First(&rec).Error
	if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return false, 0, fmt.Errorf("rate limit lookup failed: %w", lookupErr)
	}

	if errors.Is(lookupErr, gorm.ErrRecordNotFound) || now-rec.WindowStartedAt > l.policy.Window.Milliseconds() {
		fresh := model.AuthRateLimit{
			Key:             key,
			AttemptCount:    1,
			WindowStartedAt: now,
			BlockedUntil:    0,
		}
		if err := l.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&fresh).Error; err != nil {
			return false, 0, fmt.Errorf("rate limit insert failed: %w", err)
		}
		return false, 0, nil
	}

	rec.AttemptCount++
	if rec.AttemptCount >= l.policy.MaxAttempts {
		rec.BlockedUntil = now + l.policy.Block.Milliseconds()
	} else {
		rec.BlockedUntil = 0
	}

	updates := map[string]interface{}{
		"attempt_count": rec.AttemptCount,
		"blocked_until": rec.BlockedUntil,
	}
	if err := l.db.Model(&model.AuthRateLimit{}).Where("key = ?", key).Updates(updates).Error; err != nil {
		return false, 0, fmt.Errorf("rate limit update failed: %w", err)
	}

	if rec.BlockedUntil > now {
		retry := (l.policy.Block.Milliseconds() + 999) / 1000
		if retry < 1 {
			retry = 1
		}
		return true, int(retry), nil
	}
	return false, 0, nil
}

// Clear drops the record; a successful login resets the attempt
// history for the key.
func (l *Limiter) Clear(key string) error {
	if err := l.db.Delete(&model.AuthRateLimit{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("rate limit clear failed: %w", err)
	}
	return nil
}

// Key builders. Keys are scoped narrowly so one identity's failures
// never lock out another.

func MasterKey(ip string) string {
	return "master:" + ip
}

func WorkspaceKey(slug, ip string) string {
	return fmt.Sprintf("workspace:%s:%s", slug, ip)
}

func ExpertKey(slug, expertID, ip string) string {
	return fmt.Sprintf("expert:%s:%s:%s", slug, expertID, ip)
}

func VoterKey(expertID, voterName, ip string) string {
	return fmt.Sprintf("voter:%s:%s:%s", expertID, voterName, ip)
}
