package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the backend service. Payloads are google.protobuf.Struct
// messages carrying the same fields as the HTTP JSON bodies.
const (
	BackendServiceName = "vid.v1.Backend"
	StartMethod        = "/" + BackendServiceName + "/Start"
	AskMethod          = "/" + BackendServiceName + "/Ask"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcClient provides a gRPC transport to the conversational backend.
type GrpcClient struct {
	conn    *grpc.ClientConn
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcClientConfig returns default configuration for addr.
func DefaultGrpcClientConfig(addr string) GrpcClientConfig {
	if addr == "" {
		addr = "localhost:50051"
	}
	return GrpcClientConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcClient connects to the backend and fails fast if it is not reachable.
// Extra dial options are appended after the defaults.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("backend at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to conversational backend", "address", cfg.Address, "transport", TransportGRPC)

	return &GrpcClient{
		conn:    conn,
		addr:    cfg.Address,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// StartSession invokes Backend/Start.
func (c *GrpcClient) StartSession(ctx context.Context) (string, error) {
	resp, err := c.invoke(ctx, StartMethod, map[string]any{})
	if err != nil {
		return "", err
	}
	id := resp.GetFields()[FieldSessionID].GetStringValue()
	if id == "" {
		return "", fmt.Errorf("%w: Start returned an empty session_id", ErrTransport)
	}
	return id, nil
}

// Ask invokes Backend/Ask.
func (c *GrpcClient) Ask(ctx context.Context, sessionID, query string) (string, error) {
	resp, err := c.invoke(ctx, AskMethod, map[string]any{
		FieldQuery:     query,
		FieldSessionID: sessionID,
	})
	if err != nil {
		return "", err
	}
	return resp.GetFields()[FieldResponse].GetStringValue(), nil
}

func (c *GrpcClient) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s request: %w", ErrTransport, method, err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		c.logger.Warn("backend call failed", "method", method, "address", c.addr, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}
	return resp, nil
}
