// Package teams parses teams service flags and launches the service.
package teams

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/teamdesk/internal/platform/cmd"
	server "github.com/louisbranch/teamdesk/internal/services/teams/app"
)

// Config holds teams command configuration.
type Config struct {
	Port int `env:"TEAMDESK_TEAMS_PORT" envDefault:"8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The teams gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the teams service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTeams, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
