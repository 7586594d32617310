package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Framer is the server end of one connection. It is not safe for concurrent
// use; a session owns its framer.
type Framer struct {
	conn   net.Conn
	r      *bufio.Reader
	format Format
	idle   time.Duration
}

// NewFramer wraps conn. With idle > 0 every read and write must complete
// within idle or fails with ErrIdleTimeout.
func NewFramer(conn net.Conn, format Format, idle time.Duration) *Framer {
	if format == "" {
		format = FormatFramed
	}
	return &Framer{
		conn:   conn,
		r:      bufio.NewReaderSize(conn, MaxLineBytes),
		format: format,
		idle:   idle,
	}
}

func (f *Framer) Format() Format {
	return f.format
}

// SendPrompt sends text and signals that one reply is expected.
func (f *Framer) SendPrompt(text string) error {
	const op = "protocol.Framer.SendPrompt"

	if err := f.send(KindPrompt, text); err != nil {
		return f.wrapErr(op, err)
	}
	return nil
}

// SendNotice sends text that expects no reply.
func (f *Framer) SendNotice(text string) error {
	const op = "protocol.Framer.SendNotice"

	if err := f.send(KindNotice, text); err != nil {
		return f.wrapErr(op, err)
	}
	return nil
}

func (f *Framer) send(kind Kind, text string) error {
	var buf bytes.Buffer
	switch f.format {
	case FormatSentinel:
		buf.WriteString(text)
		if kind == KindPrompt {
			buf.WriteString(EndMarker)
		} else if !strings.HasSuffix(text, "\n") {
			buf.WriteByte('\n')
		}
	default:
		buf.WriteByte(byte(kind))
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(len(text)))
		buf.WriteByte('\n')
		buf.WriteString(text)
	}

	if f.idle > 0 {
		if err := f.conn.SetWriteDeadline(time.Now().Add(f.idle)); err != nil {
			return err
		}
	}

	_, err := f.conn.Write(buf.Bytes())
	return err
}

// ReceiveReply returns the next non-blank reply line with surrounding space
// trimmed. Bytes the client sent before the call, whether already buffered or
// still queued on the socket, are dropped first, so a reply always answers
// the latest prompt.
//
// Returns:
//   - protocol.ErrDisconnected on EOF or when the client sent DisconnectToken.
//   - protocol.ErrIdleTimeout if the idle deadline expired.
func (f *Framer) ReceiveReply() (string, error) {
	f.discardPending()
	return f.readReply()
}

// discardPending drops type-ahead: buffered bytes first, then anything the
// kernel holds for the connection.
func (f *Framer) discardPending() {
	if n := f.r.Buffered(); n > 0 {
		_, _ = f.r.Discard(n)
	}
	drainSocket(f.conn)
}

func (f *Framer) readReply() (string, error) {
	const op = "protocol.Framer.ReceiveReply"

	if f.idle > 0 {
		if err := f.conn.SetReadDeadline(time.Now().Add(f.idle)); err != nil {
			return "", f.wrapErr(op, err)
		}
	}

	for {
		line, err := f.readLine()
		text := strings.TrimSpace(line)

		if text == DisconnectToken {
			return "", fmt.Errorf("%s: %w", op, ErrDisconnected)
		}
		// A final fragment without a newline still counts as a reply.
		if text != "" && (err == nil || errors.Is(err, io.EOF)) {
			return text, nil
		}
		if err != nil {
			return "", f.wrapErr(op, err)
		}
	}
}

// readLine returns one line including its newline. An oversized line is
// consumed and reported as blank.
func (f *Framer) readLine() (string, error) {
	line, err := f.r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = f.r.ReadSlice('\n')
		}
		return "", err
	}
	return string(line), err
}

func (f *Framer) wrapErr(op string, err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%s: %w", op, ErrIdleTimeout)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%s: %w", op, ErrDisconnected)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrDisconnected, err)
	}
}

// Ask sends prompt and waits for the reply. Type-ahead is dropped before the
// prompt goes out, so an answer that arrives right after it is kept.
func (f *Framer) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.discardPending()
	if err := f.SendPrompt(prompt); err != nil {
		return "", err
	}

	reply, err := f.readReply()
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return reply, err
}

func (f *Framer) Tell(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.SendNotice(text)
}
