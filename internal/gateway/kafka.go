package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"gatekeeper/pkg/domain"
)

// KafkaOutbound publishes replies and prompts to the gateway's outbound
// topic. The gateway process owns delivery and presentation; we only hand it
// the content and the addressing.
type KafkaOutbound struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaOutbound builds a producer for the outbound topic.
func NewKafkaOutbound(brokers []string, topic string, logger *slog.Logger) (*KafkaOutbound, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("new kafka producer: %w", err)
	}
	return &KafkaOutbound{client: client, topic: topic, logger: logger}, nil
}

type outboundPayload struct {
	Kind          string `json:"kind"`
	InteractionID string `json:"interaction_id,omitempty"`
	GroupID       string `json:"group_id,omitempty"`
	ChannelID     string `json:"channel_id,omitempty"`
	Content       string `json:"content"`
	Ephemeral     bool   `json:"ephemeral"`
}

func (k *KafkaOutbound) RespondEphemeral(ctx context.Context, interactionID string, content string) error {
	return k.produce(ctx, interactionID, outboundPayload{
		Kind:          "interaction_response",
		InteractionID: interactionID,
		Content:       content,
		Ephemeral:     true,
	})
}

func (k *KafkaOutbound) PostPrompt(ctx context.Context, group domain.GroupID, channel domain.ChannelID, content string) error {
	return k.produce(ctx, group.String(), outboundPayload{
		Kind:      "channel_message",
		GroupID:   group.String(),
		ChannelID: channel.String(),
		Content:   content,
	})
}

func (k *KafkaOutbound) produce(ctx context.Context, key string, payload outboundPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbound payload: %w", err)
	}
	record := &kgo.Record{Key: []byte(key), Value: value}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce outbound: %w", err)
	}
	return nil
}

// Close flushes pending produces and releases the client.
func (k *KafkaOutbound) Close() {
	k.client.Close()
}
