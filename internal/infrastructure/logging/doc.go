// Package logging provides structured logging using uber/zap.
//
// Production output is JSON for machine parsing; development output is
// colored console text. Both go to LOG_OUTPUT, stderr by default.
//
// Request handlers and fetch attempts log through child loggers created
// with With, so every line carries its request ID and URL.
//
// Example Usage:
//
//	cfg, _ := config.Load()
//	logger, err := logging.New(cfg.Logging)
//	if err != nil {
//		return err
//	}
//	defer func() { _ = logger.Sync() }()
//	logger.With(zap.String("url", u)).Warn("Retrying fetch", zap.Int("attempt", 2))
package logging
