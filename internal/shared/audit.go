package shared

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx, so audit rows can be written either
// standalone or inside the transaction of the action they describe.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AdminLog is an append-only record of an administrative action.
type AdminLog struct {
	ID        int64     `json:"id"`
	AdminID   int64     `json:"adminId"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditLogger writes records into admin_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, adminID int64, action string) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	action = strings.TrimSpace(action)
	if adminID <= 0 || action == "" {
		return errors.New("audit log requires admin id and action")
	}
	_, err := l.db.Exec(ctx, `INSERT INTO admin_logs (admin_id, action, created_at) VALUES ($1, $2, NOW())`, adminID, action)
	return err
}
