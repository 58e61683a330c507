// Package server parses the server subcommand's configuration and runs the demo server.
package server

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsdemo"
	entrypoint "github.com/luciancaetano/wsdemo/internal/platform/cmd"
	"github.com/luciancaetano/wsdemo/internal/platform/logging"
	"github.com/luciancaetano/wsdemo/ws"
)

const stopTimeout = 5 * time.Second

// Config holds server command configuration.
type Config struct {
	Addr           string   `env:"WSDEMO_ADDR"            envDefault:":8080"`
	Relay          string   `env:"WSDEMO_RELAY"           envDefault:"echo"`
	RateLimit      float64  `env:"WSDEMO_RATE_LIMIT"      envDefault:"100"`
	RateBurst      int      `env:"WSDEMO_RATE_BURST"      envDefault:"200"`
	AllowedOrigins []string `env:"WSDEMO_ALLOWED_ORIGINS" envSeparator:","`
	LogLevel       string   `env:"WSDEMO_LOG_LEVEL"       envDefault:"info"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
		fs.StringVar(&cfg.Relay, "relay", cfg.Relay, "relay mode: echo or broadcast")
		fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "frames per second per peer (0 disables)")
		fs.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "rate limit burst size")
		fs.Func("allowed-origins", "comma-separated allowed origins (empty allows all)", func(v string) error {
			cfg.AllowedOrigins = splitList(v)
			return nil
		})
		fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	})
	if err != nil {
		return Config{}, err
	}

	switch cfg.Relay {
	case wsdemo.RelayEcho, wsdemo.RelayBroadcast:
	default:
		return Config{}, fmt.Errorf("relay %q: must be %q or %q", cfg.Relay, wsdemo.RelayEcho, wsdemo.RelayBroadcast)
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return Config{}, fmt.Errorf("rate limit and burst must not be negative")
	}
	return cfg, nil
}

// RateLimitConfig converts the flag values into the server's limiter settings.
func (c Config) RateLimitConfig() *ws.RateLimitConfig {
	if c.RateLimit == 0 {
		return ws.NoRateLimit()
	}
	return &ws.RateLimitConfig{
		MessagesPerSecond: rate.Limit(c.RateLimit),
		Burst:             c.RateBurst,
		Enabled:           true,
	}
}

// Run serves until ctx is cancelled. Logs go to logOut.
func Run(ctx context.Context, cfg Config, logOut io.Writer) error {
	log, err := logging.New(logOut, cfg.LogLevel, false)
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, log, func(ctx context.Context) error {
		serverCfg := ws.NewServerConfig(cfg.Addr, cfg.RateLimitConfig(), ws.AllowedOrigins(cfg.AllowedOrigins))
		serverCfg.Relay = cfg.Relay
		serverCfg.Logger = log

		server := ws.NewServer(serverCfg)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("start server: %w", err)
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := server.Stop(stopCtx); err != nil {
			return fmt.Errorf("stop server: %w", err)
		}
		log.Info().Msg("stopped")
		return nil
	})
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
