// Package logging builds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"

	"github.com/iliyamo/mealmatch/internal/config"
)

// New returns a development logger for local environments and a JSON
// production logger otherwise.  The logger is also installed as zap's global
// so that packages constructed without an explicit logger still report.
func New(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger.With(zap.String("env", cfg.Env)), nil
}
