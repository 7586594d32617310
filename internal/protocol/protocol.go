// Package protocol frames the line dialog between the booking server and its
// terminal clients.
//
// Server messages are either prompts, which expect exactly one reply line, or
// notices, which expect none. Two wire formats exist. The framed format
// prefixes every message with a typed header carrying the payload length:
//
//	P 12\n
//	Enter seat:
//
// The sentinel format writes text verbatim and marks the end of a prompt with
// EndMarker. Client replies are newline terminated in both formats.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

type Format string

const (
	FormatFramed   Format = "framed"
	FormatSentinel Format = "sentinel"
)

// ParseFormat accepts a format name case-insensitively. Empty means framed.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatFramed:
		return FormatFramed, nil
	case FormatSentinel:
		return FormatSentinel, nil
	default:
		return "", fmt.Errorf("protocol: unknown wire format %q", s)
	}
}

type Kind byte

const (
	KindPrompt Kind = 'P'
	KindNotice Kind = 'N'
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindNotice:
		return "notice"
	default:
		return fmt.Sprintf("kind(%c)", byte(k))
	}
}

const (
	// EndMarker terminates a prompt in the sentinel format.
	EndMarker = "<<END>>"

	// DisconnectToken is the reply a client sends before hanging up.
	DisconnectToken = "<<DISCONNECT>>"

	// MaxLineBytes bounds one reply line. Longer lines are discarded.
	MaxLineBytes = 4096

	// MaxFrameBytes bounds the payload a client accepts in one frame.
	MaxFrameBytes = 1 << 20
)

var (
	ErrDisconnected   = errors.New("peer disconnected")
	ErrIdleTimeout    = errors.New("peer idle for too long")
	ErrMalformedFrame = errors.New("malformed frame")
)
