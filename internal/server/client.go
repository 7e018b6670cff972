package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
)

// Query sends one command to the socket server and returns its reply line.
func Query(ctx context.Context, socketPath, command string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := io.WriteString(conn, command+"\n"); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return strings.TrimSpace(string(reply)), nil
}

// Search asks the server for the best matches of the query file at path.
func Search(ctx context.Context, socketPath, path string) (string, error) {
	return Query(ctx, socketPath, "search "+path)
}

// Shutdown asks the server to exit.
func Shutdown(ctx context.Context, socketPath string) (string, error) {
	return Query(ctx, socketPath, "exit")
}
