package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imgsearch/internal/db"
	"imgsearch/internal/server"
	"imgsearch/pkg/logger"
)

var flagServeHTTP string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over the unix socket (and HTTP when configured)",
	Long: `serve loads the catalog without descriptor payloads, or creates an empty
one when none can be loaded, and answers "search <path>" and "exit" on the
socket until told to exit or interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeHTTP, "http", "", "HTTP listen address (overrides http_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if flagServeHTTP != "" {
		conf.HTTPAddr = flagServeHTTP
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := db.New(conf)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Open(ctx); err != nil {
		return err
	}
	stats := d.Stats()
	logger.Info("Catalog ready", "path", stats.Path, "name", stats.Name, "records", stats.Records, "state", stats.State)

	sock := server.NewSocketServer(d, conf.Socket, conf.Search.ResponseMatches)

	// the HTTP API lives as long as the socket server
	httpCtx, stopHTTP := context.WithCancel(ctx)
	defer stopHTTP()
	httpErr := make(chan error, 1)
	if conf.HTTPAddr != "" {
		go func() {
			err := server.New(d).Run(httpCtx, conf.HTTPAddr)
			if err != nil {
				logger.Error("HTTP server failed", "addr", conf.HTTPAddr, "error", err)
				sock.Stop()
			}
			httpErr <- err
		}()
	} else {
		close(httpErr)
	}

	sockErr := sock.Serve(ctx)
	stopHTTP()
	if err := <-httpErr; err != nil && sockErr == nil {
		sockErr = err
	}
	return sockErr
}
