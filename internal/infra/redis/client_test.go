package redis

import (
	"context"
	"strconv"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/storefront-iam/internal/infra/config"
)

func TestNewClientAgainstMiniredis(t *testing.T) {
	server := miniredis.RunT(t)

	port, err := strconv.Atoi(server.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	client, err := NewClient(context.Background(), config.RedisSettings{Host: server.Host(), Port: port, KeyPrefix: "iam"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if got := client.Key("rl"); got != "iam:rl" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	port, _ := strconv.Atoi(server.Port())
	server.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{Host: "127.0.0.1", Port: port}, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
