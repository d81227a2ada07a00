package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger carrying fields on every entry. When debug
// is true, uses development config (human-readable, debug level); otherwise
// uses production config (JSON, info level).
func NewLogger(debug bool, fields ...zap.Field) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	return buildLogger(cfg, fields)
}

func buildLogger(cfg zap.Config, fields []zap.Field) (*zap.Logger, error) {
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return logger, nil
}
