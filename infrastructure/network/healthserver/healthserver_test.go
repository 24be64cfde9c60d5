package healthserver

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	response, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %s", service, err)
	}
	return response.Status
}

func TestHealthServer(t *testing.T) {
	server, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("TestHealthServer: New: %s", err)
	}
	server.Start()
	defer server.Stop()

	conn, err := grpc.NewClient(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("TestHealthServer: NewClient: %s", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	if status := check(t, client, ""); status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("TestHealthServer: expected the server to be SERVING, got %s", status)
	}
	if status := check(t, client, ServiceName); status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("TestHealthServer: expected NOT_SERVING before a search, got %s", status)
	}

	server.SetSearching(true)
	if status := check(t, client, ServiceName); status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("TestHealthServer: expected SERVING during a search, got %s", status)
	}

	server.SetSearching(false)
	if status := check(t, client, ServiceName); status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("TestHealthServer: expected NOT_SERVING after a search, got %s", status)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	server, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("TestStopIsIdempotent: New: %s", err)
	}
	server.Start()
	server.Stop()
	server.Stop()
}
