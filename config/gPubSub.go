package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// InventoryEventMessage is the payload published for every committed stock-affecting document.
type InventoryEventMessage struct {
	ID             int             `json:"id"`
	OrganizationId string          `json:"organization_id"`
	EventType      string          `json:"event_type"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceId    int             `json:"reference_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload"`
	CorrelationId  string          `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// getPubSubClient initializes the shared client once.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	c, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	pubsubClient = c
	log.Printf("pubsub client ready (project_id=%s)", projectID)
	return pubsubClient, nil
}

// ClosePubSub releases the shared client on shutdown.
func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}

// PublishInventoryEventWithResult publishes and returns the Pub/Sub server-assigned message ID.
func PublishInventoryEventWithResult(ctx context.Context, msg InventoryEventMessage) (string, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		return "", errors.New("PUBSUB_TOPIC is required")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	t := client.Topic(topicName)
	result := t.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":      msg.EventType,
			"organization_id": msg.OrganizationId,
			"correlation_id":  msg.CorrelationId,
		},
	})
	return result.Get(ctx)
}
