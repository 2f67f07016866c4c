// Package logging builds the engine's zap logger and scrubs secrets from
// log fields before they are written.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the root logger for the given environment. Local runs
// get the human-readable development encoder; everything else logs
// structured JSON at info level.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
