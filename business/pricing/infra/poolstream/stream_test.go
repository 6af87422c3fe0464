package poolstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/r0zar/amm-price-engine/internal/logger"
)

type countingStaler struct {
	calls atomic.Int32
}

func (s *countingStaler) MarkStale() { s.calls.Add(1) }

// streamServer accepts one connection, waits for the subscribe request, then
// pushes the given raw messages.
func streamServer(t *testing.T, messages []string, gotSubscribe *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := context.Background()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if gotSubscribe != nil {
			gotSubscribe.Store(string(data))
		}

		for _, msg := range messages {
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestStream_SubscribesOnConnect(t *testing.T) {
	var gotSubscribe atomic.Value
	srv := streamServer(t, nil, &gotSubscribe)

	staler := &countingStaler{}
	stream, err := New(Config{URL: wsURL(srv), Protocol: "uniswap-v2"}, staler, logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, func() bool { return gotSubscribe.Load() != nil })

	var req subscribeRequest
	if err := json.Unmarshal([]byte(gotSubscribe.Load().(string)), &req); err != nil {
		t.Fatalf("subscribe request not JSON: %v", err)
	}
	if req.Op != "subscribe" || req.Channel != "reserves" || req.Protocol != "uniswap-v2" {
		t.Errorf("subscribe request = %+v", req)
	}
}

func TestStream_MarksStaleOnReserveUpdate(t *testing.T) {
	srv := streamServer(t, []string{
		`{"type":"subscribed","channel":"reserves"}`,
		`{"type":"reserves_update","poolId":"0x0000000000000000000000000000000000000101","protocol":"uniswap-v2"}`,
		`{"type":"pool_added","poolId":"0x0000000000000000000000000000000000000102","protocol":"uniswap-v2"}`,
		`{"type":"heartbeat"}`,
	}, nil)

	staler := &countingStaler{}
	stream, err := New(Config{URL: wsURL(srv), Protocol: "uniswap-v2"}, staler, logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// The ack and heartbeat must not count.
	waitFor(t, func() bool { return staler.calls.Load() == 2 })
}

func TestStream_IgnoresOtherProtocols(t *testing.T) {
	srv := streamServer(t, []string{
		`{"type":"reserves_update","poolId":"0x0000000000000000000000000000000000000101","protocol":"other-dex"}`,
		`{"type":"reserves_update","poolId":"0x0000000000000000000000000000000000000102","protocol":"uniswap-v2"}`,
	}, nil)

	staler := &countingStaler{}
	stream, err := New(Config{URL: wsURL(srv), Protocol: "uniswap-v2"}, staler, logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, func() bool { return staler.calls.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if staler.calls.Load() != 1 {
		t.Errorf("calls = %d, want mismatched protocol ignored", staler.calls.Load())
	}
}

func TestStream_MalformedMessageIgnored(t *testing.T) {
	srv := streamServer(t, []string{
		`not json at all`,
		`{"type":"reserves_update","poolId":"0x0000000000000000000000000000000000000101"}`,
	}, nil)

	staler := &countingStaler{}
	stream, err := New(Config{URL: wsURL(srv)}, staler, logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, func() bool { return staler.calls.Load() == 1 })
}
