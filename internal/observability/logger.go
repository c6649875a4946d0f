// Package observability serves Prometheus metrics for mixcore. Error
// telemetry lives in the telemetry package.
package observability

import "github.com/tphakala/mixcore/internal/logger"

// GetLogger returns the observability module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("observability")
}
