package presence

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "SERVER:8050", want: 8050},
		{in: " SERVER:9000\n", want: 9000},
		{in: "SERVER:", wantErr: true},
		{in: "SERVER:70000", wantErr: true},
		{in: "CLIENT:8050", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseMessage(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMessage(%q) = %d, %v", tt.in, got, err)
		}
	}

	if got, _ := ParseMessage(Message(8050)); got != 8050 {
		t.Fatalf("round trip = %d", got)
	}
}

func freeUDPPort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestBroadcastIsDiscovered(t *testing.T) {
	addr := "127.0.0.1:" + strconv.Itoa(freeUDPPort(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	found := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		got, err := Discover(ctx, addr)
		if err != nil {
			errc <- err
			return
		}
		found <- got
	}()

	go func() {
		_ = Broadcast(ctx, Config{Addr: addr, Interval: 20 * time.Millisecond, Port: 8050}, slog.New(slog.DiscardHandler))
	}()

	select {
	case got := <-found:
		if got != "127.0.0.1:8050" {
			t.Fatalf("Discover = %q, want 127.0.0.1:8050", got)
		}
	case err := <-errc:
		t.Fatalf("Discover: %v", err)
	}
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Broadcast(ctx, Config{Addr: "127.0.0.1:9", Interval: 10 * time.Millisecond, Port: 8050}, slog.New(slog.DiscardHandler))
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Broadcast: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Broadcast did not stop")
	}
}
