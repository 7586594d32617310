package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Message struct {
	Kind Kind
	Text string
}

// Reader decodes server messages on the client side.
type Reader struct {
	r      *bufio.Reader
	format Format
}

func NewReader(r io.Reader, format Format) *Reader {
	if format == "" {
		format = FormatFramed
	}
	return &Reader{r: bufio.NewReader(r), format: format}
}

// Next returns the next server message. In the sentinel format notices carry
// no boundary, so everything up to an EndMarker comes back as one prompt; a
// stream that ends without a marker yields the rest as a notice.
func (r *Reader) Next() (Message, error) {
	if r.format == FormatSentinel {
		return r.nextSentinel()
	}
	return ReadFrame(r.r)
}

func (r *Reader) nextSentinel() (Message, error) {
	var buf bytes.Buffer
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			if buf.Len() > 0 {
				return Message{Kind: KindNotice, Text: buf.String()}, nil
			}
			return Message{}, err
		}

		buf.WriteByte(b)
		if b == '>' && bytes.HasSuffix(buf.Bytes(), []byte(EndMarker)) {
			text := buf.Bytes()[:buf.Len()-len(EndMarker)]
			return Message{Kind: KindPrompt, Text: string(text)}, nil
		}
	}
}

// ReadFrame decodes one framed message: a "P <len>" or "N <len>" header line
// followed by len payload bytes.
func ReadFrame(r *bufio.Reader) (Message, error) {
	const op = "protocol.ReadFrame"

	header, err := r.ReadString('\n')
	if err != nil {
		if header != "" && err == io.EOF {
			return Message{}, fmt.Errorf("%s: truncated header: %w", op, ErrMalformedFrame)
		}
		return Message{}, err
	}

	kind, size, err := parseHeader(strings.TrimRight(header, "\r\n"))
	if err != nil {
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("%s: payload: %w", op, err)
	}

	return Message{Kind: kind, Text: string(payload)}, nil
}

func parseHeader(header string) (Kind, int, error) {
	kindField, sizeField, ok := strings.Cut(header, " ")
	if !ok || len(kindField) != 1 {
		return 0, 0, fmt.Errorf("header %q: %w", header, ErrMalformedFrame)
	}

	kind := Kind(kindField[0])
	if kind != KindPrompt && kind != KindNotice {
		return 0, 0, fmt.Errorf("header %q: unknown kind: %w", header, ErrMalformedFrame)
	}

	size, err := strconv.Atoi(sizeField)
	if err != nil || size < 0 || size > MaxFrameBytes {
		return 0, 0, fmt.Errorf("header %q: bad length: %w", header, ErrMalformedFrame)
	}

	return kind, size, nil
}

// WriteReply sends one reply line.
func WriteReply(w io.Writer, text string) error {
	_, err := io.WriteString(w, strings.TrimRight(text, "\r\n")+"\n")
	return err
}

// WriteDisconnect tells the server the client is leaving.
func WriteDisconnect(w io.Writer) error {
	return WriteReply(w, DisconnectToken)
}
