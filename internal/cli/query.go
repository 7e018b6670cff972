package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imgsearch/internal/server"
)

var (
	flagQuerySearch  string
	flagQueryQuit    bool
	flagQueryTimeout time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Send a search or exit command to a running server",
	Args:  cobra.NoArgs,
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&flagQuerySearch, "search", "s", "", "descriptor file to search for")
	queryCmd.Flags().BoolVarP(&flagQueryQuit, "quit", "q", false, "ask the server to exit")
	queryCmd.Flags().DurationVar(&flagQueryTimeout, "timeout", time.Minute, "how long to wait for the reply")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if (flagQuerySearch == "") == !flagQueryQuit {
		return errors.New("exactly one of --search or --quit is required")
	}
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagQueryTimeout)
	defer cancel()

	var reply string
	if flagQueryQuit {
		reply, err = server.Shutdown(ctx, conf.Socket)
	} else {
		reply, err = server.Search(ctx, conf.Socket, flagQuerySearch)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
