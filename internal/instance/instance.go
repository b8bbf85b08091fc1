// Package instance keeps the host to a single running process per user.
//
// The first process listens on a local socket. A later launch connects to
// it, hands over its arguments and exits instead of starting a second host.
package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned by Acquire after the launch was forwarded to
// the running instance.
var ErrAlreadyRunning = errors.New("instance: another instance is running")

// ioTimeout bounds each step of a launch hand-over.
var ioTimeout = 2 * time.Second

// Launch describes a suppressed launch.
type Launch struct {
	Args []string `json:"args"`
	Cwd  string   `json:"cwd"`
}

type ack struct {
	OK bool `json:"ok"`
}

// Primary is the listening side held by the running instance.
type Primary struct {
	ln     net.Listener
	logger *slog.Logger
}

// Acquire claims socketPath for this process. If another instance already
// holds it, launch is forwarded there and ErrAlreadyRunning is returned.
// A socket nobody listens on, left behind by a crashed instance, is
// replaced. A live instance that fails to take the launch is an error and
// its socket is left alone.
func Acquire(socketPath string, launch Launch, logger *slog.Logger) (*Primary, error) {
	ln, err := net.Listen("unix", socketPath)
	if err == nil {
		return newPrimary(ln, socketPath, logger), nil
	}

	conn, dialErr := net.DialTimeout("unix", socketPath, ioTimeout)
	if dialErr == nil {
		defer conn.Close()
		if err := forward(conn, launch); err != nil {
			return nil, fmt.Errorf("instance: running instance did not accept launch: %w", err)
		}
		return nil, ErrAlreadyRunning
	}
	if !isStale(dialErr) {
		return nil, fmt.Errorf("instance: connect to running instance: %w", dialErr)
	}

	if rmErr := os.Remove(socketPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return nil, fmt.Errorf("instance: remove stale socket: %w", rmErr)
	}
	ln, err = net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("instance: listen: %w", err)
	}
	logger.Debug("instance: replaced stale socket", slog.String("path", socketPath))
	return newPrimary(ln, socketPath, logger), nil
}

// newPrimary restricts the socket to the current user. The default path is
// in the shared temp directory.
func newPrimary(ln net.Listener, socketPath string, logger *slog.Logger) *Primary {
	if err := os.Chmod(socketPath, 0o600); err != nil {
		logger.Warn("instance: restrict socket permissions failed", slog.String("error", err.Error()))
	}
	return &Primary{ln: ln, logger: logger}
}

// isStale reports whether a dial error means no process owns the socket.
func isStale(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist)
}

func forward(conn net.Conn, launch Launch) error {
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	if err := json.NewEncoder(conn).Encode(launch); err != nil {
		return fmt.Errorf("instance: send launch: %w", err)
	}
	var a ack
	if err := json.NewDecoder(conn).Decode(&a); err != nil {
		return fmt.Errorf("instance: read ack: %w", err)
	}
	if !a.OK {
		return errors.New("instance: launch rejected")
	}
	return nil
}

// Serve accepts forwarded launches until ctx is cancelled, calling handle
// for each one.
func (p *Primary) Serve(ctx context.Context, handle func(Launch)) error {
	go func() {
		<-ctx.Done()
		_ = p.ln.Close()
	}()

	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			p.logger.Warn("instance: accept failed", slog.String("error", err.Error()))
			continue
		}
		go p.handleConn(conn, handle)
	}
}

func (p *Primary) handleConn(conn net.Conn, handle func(Launch)) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	var launch Launch
	if err := json.NewDecoder(conn).Decode(&launch); err != nil {
		p.logger.Warn("instance: bad launch message", slog.String("error", err.Error()))
		return
	}
	p.logger.Info("instance: second launch suppressed", slog.Any("args", launch.Args))
	handle(launch)
	_ = json.NewEncoder(conn).Encode(ack{OK: true})
}

// Close releases the socket.
func (p *Primary) Close() error {
	err := p.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
