package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// LogRequest logs the outcome of one HTTP round trip
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	l = orGlobal(l)
	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogRateLimitWait logs a pause imposed by the request limiter
func LogRateLimitWait(l Logger, endpoint string, wait time.Duration) {
	if wait <= 0 {
		return
	}
	orGlobal(l).DebugWithFields("waiting for rate limiter", map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
	})
}

// LogCollectionResult logs the outcome of collecting one entity's followings
func LogCollectionResult(l Logger, username, outcome string, stats map[string]interface{}, err error) {
	fields := map[string]interface{}{
		"username": username,
		"outcome":  outcome,
	}
	for k, v := range stats {
		fields[k] = v
	}

	l = orGlobal(l)
	if err != nil {
		l.WithError(err).WarnWithFields("collection finished with errors", fields)
		return
	}
	l.InfoWithFields("collection finished", fields)
}

// LogBatchSummary logs the totals of a batch run
func LogBatchSummary(l Logger, runID string, total, succeeded, skipped, failed int, elapsed time.Duration) {
	orGlobal(l).InfoWithFields("batch complete", map[string]interface{}{
		"run_id":    runID,
		"total":     total,
		"succeeded": succeeded,
		"skipped":   skipped,
		"failed":    failed,
		"elapsed":   elapsed.Round(time.Millisecond).String(),
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l = orGlobal(l).WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("Component started")
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
