package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's SQL logging through zap. Record-not-found
// errors are dropped because repositories translate them into domain
// not-found errors themselves.
type GormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger builds a gorm logger on top of log. Queries slower than
// the threshold are logged as warnings.
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		log:           log.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// GormLoggerOption customizes a GormLogger.
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold overrides the slow query threshold. Zero disables
// slow query warnings.
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(gl *GormLogger) { gl.slowThreshold = d }
}

func (gl *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *gl
	clone.level = level
	return &clone
}

func (gl *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if gl.level >= gormlogger.Info {
		gl.log.Sugar().Infof(msg, args...)
	}
}

func (gl *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if gl.level >= gormlogger.Warn {
		gl.log.Sugar().Warnf(msg, args...)
	}
}

func (gl *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if gl.level >= gormlogger.Error {
		gl.log.Sugar().Errorf(msg, args...)
	}
}

// Trace logs each executed statement with its duration and row count.
func (gl *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if gl.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	switch {
	case err != nil && gl.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		gl.log.Error("query failed", append(fields, zap.Error(err))...)
	case gl.slowThreshold > 0 && elapsed > gl.slowThreshold && gl.level >= gormlogger.Warn:
		gl.log.Warn("slow query", fields...)
	case gl.level >= gormlogger.Info:
		gl.log.Debug("query", fields...)
	}
}

// MapGormLogLevel derives gorm's log level from the service log level.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
