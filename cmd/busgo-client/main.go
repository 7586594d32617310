// Command busgo-client is a terminal client for the booking server. It dials
// --addr or, with --discover, waits for the server's UDP announcement. It
// prints every message it receives and answers each prompt with one line
// from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kirinyoku/bus-go/internal/presence"
	"github.com/kirinyoku/bus-go/internal/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "busgo-client:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr       = pflag.String("addr", "127.0.0.1:8050", "server address host:port")
		discover   = pflag.Bool("discover", false, "find the server through its UDP announcement instead of --addr")
		listen     = pflag.String("listen", ":9000", "UDP address to listen on for server announcements")
		timeout    = pflag.Duration("discover-timeout", 30*time.Second, "how long to wait for an announcement")
		wireFormat = pflag.String("wire-format", "framed", "session wire format: framed or sentinel")
	)
	pflag.Parse()

	format, err := protocol.ParseFormat(*wireFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := *addr
	if *discover {
		fmt.Println("Looking for a server...")
		dctx, cancel := context.WithTimeout(ctx, *timeout)
		target, err = presence.Discover(dctx, *listen)
		cancel()
		if err != nil {
			return fmt.Errorf("discover server: %w", err)
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", target)

	context.AfterFunc(ctx, func() {
		_ = protocol.WriteDisconnect(conn)
		_ = conn.Close()
	})

	return converse(conn, protocol.NewReader(conn, format), bufio.NewScanner(os.Stdin))
}

func converse(conn net.Conn, r *protocol.Reader, in *bufio.Scanner) error {
	for {
		msg, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				fmt.Println("\nDisconnected.")
				return nil
			}
			return err
		}

		fmt.Print(msg.Text)
		if msg.Kind != protocol.KindPrompt {
			continue
		}

		fmt.Print(" ")
		if !in.Scan() {
			return protocol.WriteDisconnect(conn)
		}
		if err := protocol.WriteReply(conn, in.Text()); err != nil {
			return err
		}
	}
}
