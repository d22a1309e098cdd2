// Package audit records privileged actions asynchronously. Entries go
// through a bounded queue so a slow database never blocks request
// handling; when the queue is full the entry is dropped and logged.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"experts-service/internal/model"
)

const queueSize = 256

// Entry is a single audit event before persistence.
type Entry struct {
	ActorType   string
	ActorID     string
	WorkspaceID string
	Action      string
	TargetType  string
	TargetID    string
	Result      string
	StatusCode  int
	Reason      string
	IP          string
	UserAgent   string
	Origin      string
	Metadata    string
}

// Logger drains audit entries into the database from a single
// background goroutine.
type Logger struct {
	db    *gorm.DB
	log   *zap.Logger
	queue chan Entry
	done  chan struct{}
}

// NewLogger starts the drain goroutine.
func NewLogger(db *gorm.DB, log *zap.Logger) *Logger {
	l := &Logger{
		db:    db,
		log:   log,
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *Logger) drain() {
	defer close(l.done)
	for entry := range l.queue {
		row := model.AuditLog{
			ID:          uuid.NewString(),
			ActorType:   entry.ActorType,
			ActorID:     entry.ActorID,
			WorkspaceID: entry.WorkspaceID,
			Action:      entry.Action,
			TargetType:  entry.TargetType,
			TargetID:    entry.TargetID,
			Result:      entry.Result,
			StatusCode:  entry.StatusCode,
			Reason:      entry.Reason,
			IP:          entry.IP,
			UserAgent:   entry.UserAgent,
			Origin:      entry.Origin,
			Metadata:    entry.Metadata,
			CreatedAt:   time.Now(),
		}
		if err := l.db.Create(&row).Error; err != nil {
			l.log.Error("audit write failed",
				zap.String("action", entry.Action),
				zap.Error(err))
		}
	}
}

// Record enqueues an entry. It never blocks; if the queue is full the
// entry is dropped with a warning.
func (l *Logger) Record(entry Entry) {
	select {
	case l.queue <- entry:
	default:
		l.log.Warn("audit queue full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("actor_type", entry.ActorType))
	}
}

// FromRequest fills the request-derived fields of an entry.
func FromRequest(c echo.Context, entry Entry) Entry {
	entry.IP = c.RealIP()
	entry.UserAgent = c.Request().UserAgent()
	entry.Origin = c.Request().Header.Get("Origin")
	return entry
}

// Close stops accepting entries and waits until everything queued has
// been written.
func (l *Logger) Close() {
	close(l.queue)
	<-l.done
}
