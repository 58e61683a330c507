// Package main runs the WebSocket chat demo: `wsdemo server` serves the demo page and
// the /websocket endpoint, `wsdemo client` chats with it from a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/luciancaetano/wsdemo/internal/cmd/client"
	servercmd "github.com/luciancaetano/wsdemo/internal/cmd/server"
	"github.com/luciancaetano/wsdemo/internal/platform/config"
)

const usage = `usage: wsdemo <command> [flags]

commands:
  server   serve the demo page and the /websocket endpoint
  client   chat with a running server from the terminal`

func main() {
	if len(os.Args) < 2 {
		config.Exitf(usage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet("wsdemo "+command, flag.ExitOnError)

	var err error
	switch command {
	case "server":
		var cfg servercmd.Config
		if cfg, err = servercmd.ParseConfig(fs, args); err != nil {
			config.Exitf("parse flags: %v", err)
		}
		err = servercmd.Run(ctx, cfg, os.Stderr)
	case "client":
		var cfg clientcmd.Config
		if cfg, err = clientcmd.ParseConfig(fs, args); err != nil {
			config.Exitf("parse flags: %v", err)
		}
		err = clientcmd.Run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	case "-h", "-help", "--help", "help":
		fmt.Println(usage)
		return
	default:
		config.Exitf("unknown command %q\n\n%s", command, usage)
	}

	if err != nil {
		config.Exitf("wsdemo %s: %v", command, err)
	}
}
