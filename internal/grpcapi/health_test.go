package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

type probe struct{ err error }

func (p *probe) Check(context.Context) error { return p.err }

func startBufGRPC(t *testing.T, h *Health) *Client {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	server := NewServer(h)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
	client, err := Dial(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() {
		server.GracefulStop()
		_ = client.Close()
		_ = listener.Close()
	})
	return client
}

func TestHealthFollowsReadiness(t *testing.T) {
	p := &probe{}
	h := NewHealth(p)
	client := startBufGRPC(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.Probe(ctx); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	serving, err := client.Serving(ctx, ServiceName)
	if err != nil {
		t.Fatalf("Serving: %v", err)
	}
	if !serving {
		t.Fatal("expected SERVING after a successful probe")
	}

	p.err = errors.New("db down")
	if err := h.Probe(ctx); err == nil {
		t.Fatal("expected probe error")
	}
	serving, err = client.Serving(ctx, "")
	if err != nil {
		t.Fatalf("Serving: %v", err)
	}
	if serving {
		t.Fatal("expected NOT_SERVING after a failed probe")
	}
}

func TestWatchShutsDownOnCancel(t *testing.T) {
	h := NewHealth(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	resp, err := h.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after shutdown, got %v", resp.GetStatus())
	}
}
