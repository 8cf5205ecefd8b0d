package agent

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/vid-companion/internal/config"
)

// New builds the transport selected by cfg.Transport.
func New(cfg config.AgentConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Transport {
	case TransportHTTP, "":
		c, err := NewHTTPClient(cfg.BaseURL, cfg.RequestTimeout, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case TransportGRPC:
		grpcCfg := DefaultGrpcClientConfig(cfg.GrpcAddr)
		grpcCfg.RequestTimeout = cfg.RequestTimeout
		c, err := NewGrpcClient(grpcCfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown agent transport %q", cfg.Transport)
	}
}
