package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadcrm-booking/internal/booking"
	appconfig "github.com/wolfman30/leadcrm-booking/internal/config"
	"github.com/wolfman30/leadcrm-booking/internal/notify"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true))
}

func TestBuildPoolEmptyURLReturnsNil(t *testing.T) {
	pool, err := BuildPool(context.Background(), &appconfig.Config{}, logging.New("error"))
	require.NoError(t, err)
	assert.Nil(t, pool)

	db, err := BuildAuditDB(&appconfig.Config{})
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestBuildPoolRejectsMalformedURL(t *testing.T) {
	_, err := BuildPool(context.Background(), &appconfig.Config{DatabaseURL: "postgres://%zz"}, logging.New("error"))
	assert.Error(t, err)
}

func TestBuildNegotiationStore(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)
	redisClient := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	t.Cleanup(func() { _ = redisClient.Close() })
	dynamoClient := dynamodb.New(dynamodb.Options{Region: "us-east-1"})

	cases := []struct {
		name   string
		cfg    *appconfig.Config
		redis  bool
		dynamo bool
		want   string
	}{
		{"redis", &appconfig.Config{NegotiationStore: "redis"}, true, false, "redis"},
		{"redis missing", &appconfig.Config{NegotiationStore: "redis"}, false, false, "memory"},
		{"dynamodb", &appconfig.Config{NegotiationStore: "dynamodb", NegotiationsTable: "negotiations"}, false, true, "dynamodb"},
		{"dynamodb without table", &appconfig.Config{NegotiationStore: "dynamodb"}, false, true, "memory"},
		{"memory", &appconfig.Config{NegotiationStore: "memory"}, true, true, "memory"},
		{"unknown", &appconfig.Config{NegotiationStore: "etcd"}, true, true, "memory"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := redisClient
			if !tc.redis {
				rc = nil
			}
			dc := dynamoClient
			if !tc.dynamo {
				dc = nil
			}
			store, name := BuildNegotiationStore(tc.cfg, rc, dc, logger)
			require.NotNil(t, store)
			assert.Equal(t, tc.want, name)
			switch tc.want {
			case "redis":
				assert.IsType(t, &booking.RedisStore{}, store)
			case "dynamodb":
				assert.IsType(t, &booking.DynamoStore{}, store)
			default:
				assert.IsType(t, &booking.MemoryStore{}, store)
			}
		})
	}
}

func TestNegotiationTTLDefaultsToStoreRetention(t *testing.T) {
	t.Setenv("NEGOTIATION_TTL", "")
	assert.Equal(t, booking.DefaultRetention, appconfig.Load().NegotiationTTL)
}

func TestBuildSchedulingStore(t *testing.T) {
	assert.IsType(t, &scheduling.MemoryStore{}, BuildSchedulingStore(nil))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &scheduling.RedisStore{}, BuildSchedulingStore(client))
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	sesClient := sesv2.New(sesv2.Options{Region: "us-east-1"})

	sender, provider, reason := BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.test"}, nil, logger)
	assert.IsType(t, &notify.SendGridSender{}, sender)
	assert.Equal(t, "sendgrid", provider)
	assert.Empty(t, reason)

	sender, provider, reason = BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, nil, logger)
	assert.IsType(t, &notify.StubEmailSender{}, sender)
	assert.Equal(t, "stub", provider)
	assert.Contains(t, reason, "SENDGRID_API_KEY")

	sender, provider, _ = BuildEmailSender(&appconfig.Config{EmailProvider: "ses", SESFromEmail: "book@example.com"}, sesClient, logger)
	assert.IsType(t, &notify.SESSender{}, sender)
	assert.Equal(t, "ses", provider)

	sender, provider, reason = BuildEmailSender(&appconfig.Config{EmailProvider: "ses", SESFromEmail: "book@example.com"}, nil, logger)
	assert.IsType(t, &notify.StubEmailSender{}, sender)
	assert.Equal(t, "stub", provider)
	assert.NotEmpty(t, reason)

	sender, provider, _ = BuildEmailSender(&appconfig.Config{}, nil, logger)
	assert.IsType(t, &notify.StubEmailSender{}, sender)
	assert.Equal(t, "stub", provider)
}
