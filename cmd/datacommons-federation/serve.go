package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/datacommons-federation/internal/api/http"
	"github.com/i474232898/datacommons-federation/internal/mcpserver"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the federation in one of several modes",
}

var serveStdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP tools over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L()
		comps, err := buildComponents(cfg, log)
		if err != nil {
			return err
		}
		if err := comps.scheduler.Start(); err != nil {
			return eris.Wrap(err, "start scheduler")
		}
		defer comps.scheduler.Stop()

		log.Info("serving MCP over stdio")
		return mcpserver.New(comps.service, version, log).ServeStdio()
	},
}

var serveSSECmd = &cobra.Command{
	Use:   "sse",
	Short: "Serve MCP tools over HTTP server-sent events",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L()
		comps, err := buildComponents(cfg, log)
		if err != nil {
			return err
		}
		if err := comps.scheduler.Start(); err != nil {
			return eris.Wrap(err, "start scheduler")
		}
		defer comps.scheduler.Stop()

		addr := listenAddr(cmd)
		sse := mcpserver.New(comps.service, version, log).NewSSEServer("http://" + addr)

		listenErr := make(chan error, 1)
		go func() {
			log.Info("serving MCP over SSE", zap.String("url", "http://"+addr+"/sse"))
			if err := sse.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				listenErr <- eris.Wrapf(err, "sse listen on %s", addr)
			}
		}()

		return waitAndShutdown(log, listenErr, sse.Shutdown)
	},
}

var serveAPICmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L()
		comps, err := buildComponents(cfg, log)
		if err != nil {
			return err
		}
		if err := comps.scheduler.Start(); err != nil {
			return eris.Wrap(err, "start scheduler")
		}
		defer comps.scheduler.Stop()

		app := httpapi.NewApp(comps.service)
		addr := listenAddr(cmd)

		listenErr := make(chan error, 1)
		go func() {
			log.Info("serving REST API", zap.String("addr", addr))
			if err := app.Listen(addr); err != nil {
				listenErr <- eris.Wrapf(err, "api listen on %s", addr)
			}
		}()

		return waitAndShutdown(log, listenErr, app.ShutdownWithContext)
	},
}

// listenAddr prefers explicit flags over configuration.
func listenAddr(cmd *cobra.Command) string {
	host, port := cfg.Server.Host, cfg.Server.Port
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// waitAndShutdown blocks until SIGINT/SIGTERM, then calls shutdown with a
// bounded context. A listener failure on listenErr is returned immediately.
func waitAndShutdown(log *zap.Logger, listenErr <-chan error, shutdown func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-listenErr:
		log.Error("server failed to start", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shutdown(shutdownCtx); err != nil {
		log.Warn("error during shutdown", zap.Error(err))
		return eris.Wrap(err, "shutdown")
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{serveSSECmd, serveAPICmd} {
		c.Flags().StringVar(&serveHost, "host", "localhost", "host to bind")
		c.Flags().IntVar(&servePort, "port", 8080, "port to bind")
	}
	serveCmd.AddCommand(serveStdioCmd, serveSSECmd, serveAPICmd)
	rootCmd.AddCommand(serveCmd)
}
