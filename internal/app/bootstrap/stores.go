package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/leadcrm-booking/internal/booking"
	appconfig "github.com/wolfman30/leadcrm-booking/internal/config"
	"github.com/wolfman30/leadcrm-booking/internal/notify"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// BuildNegotiationStore picks the negotiation backend named by
// NEGOTIATION_STORE, falling back to memory when the backend is missing.
// The second return names the store actually used.
func BuildNegotiationStore(cfg *appconfig.Config, redisClient *redis.Client, dynamoClient *dynamodb.Client, logger *logging.Logger) (booking.Store, string) {
	if logger == nil {
		logger = logging.Default()
	}
	want := "memory"
	if cfg != nil {
		want = strings.ToLower(strings.TrimSpace(cfg.NegotiationStore))
	}

	switch want {
	case "redis":
		if redisClient != nil {
			return booking.NewRedisStore(redisClient, cfg.NegotiationTTL), "redis"
		}
		logger.Warn("negotiation store redis requested without redis; using memory")
	case "dynamodb":
		if dynamoClient != nil && strings.TrimSpace(cfg.NegotiationsTable) != "" {
			return booking.NewDynamoStore(dynamoClient, cfg.NegotiationsTable, cfg.NegotiationTTL), "dynamodb"
		}
		logger.Warn("negotiation store dynamodb requested without client or table; using memory")
	case "memory", "":
	default:
		logger.Warn("unknown negotiation store; using memory", "store", want)
	}
	return booking.NewMemoryStore(), "memory"
}

// BuildSchedulingStore keeps scheduling configs in Redis when available.
func BuildSchedulingStore(redisClient *redis.Client) scheduling.Store {
	if redisClient == nil {
		return scheduling.NewMemoryStore()
	}
	return scheduling.NewRedisStore(redisClient)
}

// BuildEmailSender selects the reminder email provider. It returns the
// sender, the provider name and, when it fell back to the stub, the reason.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) (notify.EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub", "missing config"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "sendgrid":
		// Compare the concrete pointer before it becomes an interface value.
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return notify.NewStubEmailSender(logger), "stub", "SENDGRID_API_KEY not set"
		}
		return sender, "sendgrid", ""
	case "ses":
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return notify.NewStubEmailSender(logger), "stub", "SES_FROM_EMAIL not set"
		}
		sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return notify.NewStubEmailSender(logger), "stub", "ses client unavailable"
		}
		return sender, "ses", ""
	default:
		return notify.NewStubEmailSender(logger), "stub", ""
	}
}
