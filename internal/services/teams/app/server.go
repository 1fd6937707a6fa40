// Package app wires the teams runtime: storage, the service layer, the
// invitation sweeper, and the gRPC lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/teamdesk/internal/platform/config"
	"github.com/louisbranch/teamdesk/internal/platform/timeouts"
	identitysqlite "github.com/louisbranch/teamdesk/internal/services/identity/storage/sqlite"
	"github.com/louisbranch/teamdesk/internal/services/teams/notify"
	"github.com/louisbranch/teamdesk/internal/services/teams/service"
	teamssqlite "github.com/louisbranch/teamdesk/internal/services/teams/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type serverEnv struct {
	TeamsDBPath    string `env:"TEAMDESK_TEAMS_DB_PATH"`
	IdentityDBPath string `env:"TEAMDESK_IDENTITY_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.TeamsDBPath) == "" {
		cfg.TeamsDBPath = filepath.Join("data", "teams.db")
	}
	if strings.TrimSpace(cfg.IdentityDBPath) == "" {
		cfg.IdentityDBPath = filepath.Join("data", "identity.db")
	}
	return cfg
}

// Server hosts the teams runtime and its gRPC health surface.
type Server struct {
	listener      net.Listener
	grpcServer    *grpc.Server
	health        *health.Server
	store         *teamssqlite.Store
	identityStore *identitysqlite.Store
	service       *service.Service
	sweepInterval time.Duration
}

// New creates a configured teams server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured teams server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openTeamsStore(env.TeamsDBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	identityStore, err := openIdentityStore(env.IdentityDBPath)
	if err != nil {
		_ = store.Close()
		_ = listener.Close()
		return nil, err
	}

	svc := service.New(store, identityStore, &notify.LogNotifier{})

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("teamdesk.teams", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:      listener,
		grpcServer:    grpcServer,
		health:        healthServer,
		store:         store,
		identityStore: identityStore,
		service:       svc,
		sweepInterval: timeouts.InvitationSweep,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Service exposes the teams service for embedding callers.
func (s *Server) Service() *service.Service {
	if s == nil {
		return nil
	}
	return s.service
}

// Run creates and serves a teams server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server and the invitation sweeper until context
// cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		s.runSweeper(sweepCtx)
	}()
	defer func() {
		stopSweeper()
		<-sweeperDone
	}()

	log.Printf("teams server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// runSweeper expires overdue pending invitations on a fixed interval until
// the context is cancelled.
func (s *Server) runSweeper(ctx context.Context) {
	interval := s.sweepInterval
	if interval <= 0 {
		interval = timeouts.InvitationSweep
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.service.SweepExpiredInvitations(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("sweep expired invitations: %v", err)
				}
				continue
			}
			if expired > 0 {
				log.Printf("expired %d pending invitations", expired)
			}
		}
	}
}

// Close releases teams server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close teams store: %v", err)
		}
	}
	if s.identityStore != nil {
		if err := s.identityStore.Close(); err != nil {
			log.Printf("close identity store: %v", err)
		}
	}
}

func openTeamsStore(path string) (*teamssqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := teamssqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open teams sqlite store: %w", err)
	}
	return store, nil
}

func openIdentityStore(path string) (*identitysqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := identitysqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identity sqlite store: %w", err)
	}
	return store, nil
}
