// Package utils holds small helpers shared across the discovery engine
// that don't belong to any one domain package.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer returns a defer-friendly stop function that logs how long
// the enclosing operation took, with a warning above 30s.
//
//	defer utils.OperationTimer("job_run", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("operation completed")

		if duration > 30*time.Second {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("slow operation detected")
		}
	}
}
