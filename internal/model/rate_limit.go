package model

// AuthRateLimit tracks failed authentication attempts for one logical
// key (scope + identity + client IP). Rows are transient: a successful
// login or an expired window deletes them.
type AuthRateLimit struct {
	Key             string `gorm:"type:varchar(255);primaryKey"`
	AttemptCount    int    `gorm:"not null;default:0"`
	WindowStartedAt int64  `gorm:"not null"` // unix milliseconds
	BlockedUntil    int64  `gorm:"not null;default:0"`
}
