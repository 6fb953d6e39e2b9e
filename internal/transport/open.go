package transport

import (
	"errors"
	"strings"

	logx "wablast/pkg/logx"
)

// Open builds the configured driver.
func Open(cfg Config, log logx.Logger) (Transport, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	log = log.With(logx.String("comp", "transport"), logx.String("driver", driver))
	switch driver {
	case "gateway", "http":
		return NewGateway(cfg, log)
	case "", "dryrun":
		return NewDryRun(log), nil
	default:
		return nil, errors.New("unknown transport driver: " + driver)
	}
}
