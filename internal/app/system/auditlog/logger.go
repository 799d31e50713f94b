// internal/app/system/auditlog/logger.go
package auditlog

import (
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/normalize"
	"go.uber.org/zap"
)

// Destination settings for authentication events.
const (
	SettingAll = "all" // per-user trail + zap
	SettingDB  = "db"  // per-user trail only
	SettingLog = "log" // zap only
	SettingOff = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls where authentication events (register, login) go.
	// Values: "all", "db", "log", "off". Empty means "all".
	Auth string
}

// Event is an authentication event as seen by the auth flow.
type Event struct {
	Action  string
	Outcome string
	IP      string
	UserID  string // empty when the account is unknown
	Email   string
	Reason  string // failure detail, never password material
}

// Logger routes authentication events to the user's trail and/or zap.
type Logger struct {
	zapLog  *zap.Logger
	setting string
	now     func() time.Time
}

// New creates a new audit Logger.
func New(zapLog *zap.Logger, config Config) *Logger {
	setting := normalize.Code(config.Auth)
	switch setting {
	case SettingAll, SettingDB, SettingLog, SettingOff:
	default:
		setting = SettingAll
	}
	return &Logger{
		zapLog:  zapLog,
		setting: setting,
		now:     time.Now,
	}
}

// PersistsTrail reports whether events are written to user records.
func (l *Logger) PersistsTrail() bool {
	return l != nil && (l.setting == SettingAll || l.setting == SettingDB)
}

// Record logs ev per configuration and returns the user's trail with the
// event appended. changed is false when the trail was left alone, in which
// case the caller has nothing to persist.
// A nil Logger still maintains the trail.
func (l *Logger) Record(existing string, ev Event) (trail string, changed bool) {
	now := time.Now()
	if l != nil {
		now = l.now()
		if l.setting == SettingAll || l.setting == SettingLog {
			l.logToZap(ev)
		}
		if !l.PersistsTrail() {
			return existing, false
		}
	}
	return Append(existing, NewEntry(now, ev.IP, ev.Action, ev.Outcome)), true
}

// Log writes ev to zap only, for events with no user record to hold them.
func (l *Logger) Log(ev Event) {
	if l == nil || l.setting == SettingOff || l.setting == SettingDB {
		return
	}
	l.logToZap(ev)
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(ev Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("action", ev.Action),
		zap.String("outcome", ev.Outcome),
		zap.String("ip", ev.IP),
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.Email != "" {
		fields = append(fields, zap.String("email", ev.Email))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("failure_reason", ev.Reason))
	}

	if ev.Outcome == OutcomeSuccess {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}
