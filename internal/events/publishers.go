package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// sqsAPI is the part of *sqs.Client the publisher uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher delivers outbox entries to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

// NewSQSPublisher wraps an SQS client for the given queue.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	return newSQSPublisher(client, queueURL)
}

func newSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

type envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	WorkspaceID string          `json:"workspace_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	body, err := json.Marshal(envelope{
		ID:          entry.ID.String(),
		Type:        entry.Type,
		WorkspaceID: entry.WorkspaceID,
		OccurredAt:  entry.CreatedAt,
		Payload:     entry.Payload,
	})
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type":   {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
			"workspace_id": {DataType: aws.String("String"), StringValue: aws.String(entry.WorkspaceID)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

// LogHandler writes entries to the log; used when no queue is configured.
type LogHandler struct {
	Logger *logging.Logger
}

func (h LogHandler) Handle(_ context.Context, entry OutboxEntry) error {
	logger := h.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("event", "event_id", entry.ID, "type", entry.Type, "workspace_id", entry.WorkspaceID,
		"payload", string(entry.Payload))
	return nil
}

// MemoryPublisher keeps events in memory. It is both a Publisher and a
// PendingStore, so a Deliverer can drain it without Postgres.
type MemoryPublisher struct {
	mu      sync.Mutex
	entries []memoryEntry
}

type memoryEntry struct {
	OutboxEntry
	delivered bool
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, workspaceID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, memoryEntry{OutboxEntry: OutboxEntry{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Type:        eventType,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}})
	return nil
}

// Events returns every published entry, in order.
func (p *MemoryPublisher) Events() []OutboxEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OutboxEntry, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.OutboxEntry
	}
	return out
}

// Types returns the event types in publish order.
func (p *MemoryPublisher) Types() []string {
	var types []string
	for _, e := range p.Events() {
		types = append(types, e.Type)
	}
	return types
}

func (p *MemoryPublisher) FetchPending(_ context.Context, limit int32) ([]OutboxEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []OutboxEntry
	for _, e := range p.entries {
		if e.delivered {
			continue
		}
		out = append(out, e.OutboxEntry)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (p *MemoryPublisher) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		if p.entries[i].ID == id && !p.entries[i].delivered {
			p.entries[i].delivered = true
			return true, nil
		}
	}
	return false, nil
}

func (p *MemoryPublisher) MarkFailed(_ context.Context, id uuid.UUID, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		if p.entries[i].ID == id {
			p.entries[i].Attempts++
		}
	}
	return nil
}
