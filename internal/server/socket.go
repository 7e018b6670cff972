package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	DB "imgsearch/internal/db"
	"imgsearch/internal/metrics"
	"imgsearch/pkg/logger"
)

// Socket protocol replies.
const (
	ReplyShutdown     = "Image Search Server shutting down..."
	ReplySearchFailed = "Search command failed"
	ReplyUnknown      = "Unknown command"
)

const (
	maxRequestLength   = 4096
	requestReadTimeout = 10 * time.Second
)

// SocketServer answers one text command per unix-socket connection:
// "search <path>" or "exit".
type SocketServer struct {
	db              *DB.DB
	path            string
	responseMatches int

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
	conns    sync.WaitGroup
}

func NewSocketServer(db *DB.DB, path string, responseMatches int) *SocketServer {
	if responseMatches <= 0 {
		responseMatches = 1
	}
	return &SocketServer{
		db:              db,
		path:            path,
		responseMatches: responseMatches,
		done:            make(chan struct{}),
	}
}

// Serve accepts connections until an exit command arrives, Stop is called or
// ctx is cancelled. In-flight requests finish before it returns.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	select {
	case <-s.done:
		// stopped before the listener existed
		ln.Close()
	default:
	}
	s.mu.Unlock()
	defer os.Remove(s.path)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	logger.Info("Socket server listening", "socket", s.path)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.conns.Wait()
				logger.Info("Socket server stopped", "socket", s.path)
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.Stop()
			s.conns.Wait()
			return err
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Stop closes the listener. It is safe to call more than once.
func (s *SocketServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Done is closed once the server starts shutting down.
func (s *SocketServer) Done() <-chan struct{} {
	return s.done
}

func (s *SocketServer) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	id := uuid.New().String()

	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	line, err := bufio.NewReader(io.LimitReader(conn, maxRequestLength)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("Failed to read request", "request_id", id, "error", err)
		return
	}

	reply, command := s.dispatch(ctx, id, strings.TrimSpace(line))
	if _, err := io.WriteString(conn, reply+"\n"); err != nil {
		logger.Warn("Failed to write reply", "request_id", id, "error", err)
	}
	if command == "exit" {
		s.Stop()
	}
}

// dispatch executes one command line and returns the reply and the command
// name used for metrics.
func (s *SocketServer) dispatch(ctx context.Context, id, line string) (string, string) {
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "exit":
		logger.Info("Exit requested", "request_id", id)
		metrics.SocketRequestsTotal.WithLabelValues("exit", "ok").Inc()
		return ReplyShutdown, command

	case "search":
		start := time.Now()
		reply, err := s.search(ctx, arg)
		metrics.SocketRequestsTotal.WithLabelValues("search", metrics.Status(err)).Inc()
		if err != nil {
			logger.Warn("Search failed", "request_id", id, "path", arg, "error", err)
			return ReplySearchFailed, command
		}
		logger.Info("Search served", "request_id", id, "path", arg, "reply", reply, "elapsed", time.Since(start))
		return reply, command

	default:
		logger.Warn("Unknown command", "request_id", id, "line", line)
		metrics.SocketRequestsTotal.WithLabelValues("unknown", "error").Inc()
		return ReplyUnknown, "unknown"
	}
}

func (s *SocketServer) search(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", errors.New("missing query path")
	}
	matches, err := s.db.Search(ctx, path)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, s.responseMatches)
	for _, m := range matches {
		if len(names) == s.responseMatches {
			break
		}
		names = append(names, m.Name)
	}
	return strings.Join(names, " "), nil
}
