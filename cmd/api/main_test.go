package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/leadcrm-booking/internal/config"
	"github.com/wolfman30/leadcrm-booking/internal/events"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

func TestSetupMetricsExposesBookingMetrics(t *testing.T) {
	handler, bookingMetrics := setupMetrics()
	if handler == nil || bookingMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	bookingMetrics.ObserveConfirmation("booked")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "leadcrm_confirmations_total") {
		t.Fatalf("expected confirmation counter to be exported")
	}
}

func TestBuildRepositoriesWithoutPoolUsesMemory(t *testing.T) {
	repos := buildRepositories(nil)
	if repos.leads == nil || repos.appointments == nil {
		t.Fatalf("expected in-memory repositories")
	}
	if _, ok := repos.publisher.(*events.MemoryPublisher); !ok {
		t.Fatalf("expected memory publisher, got %T", repos.publisher)
	}
	if repos.pending == nil {
		t.Fatalf("expected memory publisher to back the deliverer")
	}
}

func TestBuildEventHandler(t *testing.T) {
	logger := logging.New("error")

	if _, ok := buildEventHandler(&appconfig.Config{}, nil, logger).(events.LogHandler); !ok {
		t.Fatalf("expected log handler without a queue")
	}

	client := sqs.NewFromConfig(aws.Config{Region: "us-east-1"})
	cfg := &appconfig.Config{EventsQueueURL: "http://localhost:4566/000000000000/booking-events"}
	if _, ok := buildEventHandler(cfg, client, logger).(*events.SQSPublisher); !ok {
		t.Fatalf("expected SQS publisher when queue is configured")
	}
}

func TestSetupAWSSkippedWhenUnused(t *testing.T) {
	clients, err := setupAWS(context.Background(), &appconfig.Config{NegotiationStore: "redis", EmailProvider: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clients.dynamo != nil || clients.sqs != nil || clients.ses != nil {
		t.Fatalf("expected no AWS clients")
	}
}

func TestSetupAWSBuildsClients(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		NegotiationStore:    "dynamodb",
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	clients, err := setupAWS(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clients.dynamo == nil || clients.sqs == nil || clients.ses == nil {
		t.Fatalf("expected AWS clients")
	}
}

func TestHealthChecks(t *testing.T) {
	if checks := healthChecks(nil, nil); len(checks) != 0 {
		t.Fatalf("expected no checks, got %d", len(checks))
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checks := healthChecks(nil, client)
	check, ok := checks["redis"]
	if !ok {
		t.Fatalf("expected redis check")
	}
	if err := check(context.Background()); err != nil {
		t.Fatalf("redis check: %v", err)
	}
}
