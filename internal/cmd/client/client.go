// Package client runs the interactive chat client: stdin lines are submitted to the
// demo endpoint and the session renders to a terminal view.
package client

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/luciancaetano/wsdemo/internal/platform/cmd"
	"github.com/luciancaetano/wsdemo/internal/platform/logging"
	"github.com/luciancaetano/wsdemo/internal/view"
	"github.com/luciancaetano/wsdemo/ws"
)

const closeTimeout = 2 * time.Second

// Client commands typed on their own line.
const (
	CommandReconnect = "/reconnect"
	CommandQuit      = "/quit"
)

// Config holds client command configuration.
type Config struct {
	Origin   string `env:"WSDEMO_ORIGIN"    envDefault:"http://localhost:8080/ws-demo"`
	LogLevel string `env:"WSDEMO_LOG_LEVEL" envDefault:"warn"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "page origin the /websocket endpoint is resolved against")
		fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	})
	if err != nil {
		return Config{}, err
	}
	if _, err := ws.ResolveEndpoint(cfg.Origin); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run connects and relays lines from in until ctx is cancelled, in is exhausted or
// CommandQuit is read. The transcript goes to out and logs to logOut.
func Run(ctx context.Context, cfg Config, in io.Reader, out, logOut io.Writer) error {
	log, err := logging.New(logOut, cfg.LogLevel, true)
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, log, func(ctx context.Context) error {
		term := view.NewTerminal(out)
		session := ws.NewSession(ws.NewSessionConfig(cfg.Origin, log), term)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			_ = session.Close(closeCtx)
		}()

		if err := session.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				switch strings.TrimSpace(line) {
				case CommandQuit:
					return nil
				case CommandReconnect:
					if err := session.Connect(ctx); err != nil {
						return fmt.Errorf("reconnect: %w", err)
					}
				default:
					term.SetInput(line)
					if err := session.Submit(ctx); err != nil {
						log.Warn().Err(err).Msg("submit failed")
					}
				}
			}
		}
	})
}
