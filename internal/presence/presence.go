// Package presence announces the booking server on the local network so
// clients can find it without configuration.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

const messagePrefix = "SERVER:"

type Config struct {
	// Addr is the UDP destination, normally the broadcast address.
	Addr     string
	Interval time.Duration
	// Port is the TCP port being announced.
	Port int
}

// Message returns the announcement for a server on port.
func Message(port int) string {
	return messagePrefix + strconv.Itoa(port)
}

// ParseMessage extracts the port from an announcement.
func ParseMessage(msg string) (int, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(msg), messagePrefix)
	if !ok {
		return 0, fmt.Errorf("presence: unexpected message %q", msg)
	}
	port, err := strconv.Atoi(rest)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("presence: bad port in %q", msg)
	}
	return port, nil
}

// Broadcast sends the announcement every cfg.Interval until ctx is done.
// Send failures are logged and do not stop the loop.
func Broadcast(ctx context.Context, cfg Config, log *slog.Logger) error {
	const op = "presence.Broadcast"

	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}

	dst, err := net.ResolveUDPAddr("udp4", cfg.Addr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		log.Warn("broadcast socket option not set", "error", err)
	}

	msg := []byte(Message(cfg.Port))
	log.Info("announcing server", "addr", dst.String(), "message", string(msg), "interval", cfg.Interval)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := conn.WriteToUDP(msg, dst); err != nil {
			log.Debug("presence send failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Discover waits for one announcement on listenAddr and returns the server
// address it names.
func Discover(ctx context.Context, listenAddr string) (string, error) {
	const op = "presence.Discover"

	laddr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, 64)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%s: %w", op, ctx.Err())
			}
			return "", fmt.Errorf("%s: %w", op, err)
		}

		port, err := ParseMessage(string(buf[:n]))
		if err != nil {
			continue
		}
		return net.JoinHostPort(from.IP.String(), strconv.Itoa(port)), nil
	}
}
