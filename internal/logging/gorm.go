package logging

import (
	"context"
	"errors"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// SlowQueryThreshold is the duration above which a query is logged as a warning.
const SlowQueryThreshold = 200 * time.Millisecond

// GormLogger routes gorm's SQL logging through a Logger.
// Query traces are written at DEBUG, slow queries at WARN and failed
// queries at ERROR. Record-not-found is not treated as a failure.
type GormLogger struct {
	logger *Logger
	level  gormlogger.LogLevel
}

// NewGormLogger returns a gorm logger backed by l.
// The gorm log level is derived from the level of l.
func NewGormLogger(l *Logger) *GormLogger {
	level := gormlogger.Silent
	switch {
	case l.Enabled(LevelDebug):
		level = gormlogger.Info
	case l.Enabled(LevelWarn):
		level = gormlogger.Warn
	case l.Enabled(LevelError):
		level = gormlogger.Error
	}
	return &GormLogger{logger: l, level: level}
}

// LogMode implements gormlogger.Interface.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface.
func (g *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Info {
		g.logger.Info(msg, data...)
	}
}

// Warn implements gormlogger.Interface.
func (g *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.logger.Warn(msg, data...)
	}
}

// Error implements gormlogger.Interface.
func (g *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Error {
		g.logger.Error(msg, data...)
	}
}

// Trace implements gormlogger.Interface.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		g.logger.Error("query failed after %v (rows=%d): %s: %v", elapsed, rows, sql, err)
	case elapsed > SlowQueryThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.logger.Warn("slow query %v (rows=%d): %s", elapsed, rows, sql)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.logger.Debug("query %v (rows=%d): %s", elapsed, rows, sql)
	}
}
