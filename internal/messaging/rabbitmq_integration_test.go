//go:build integration

package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"dataset-generator/internal/messaging"
)

func TestRabbitMQPublisher_PublishesToQueue(t *testing.T) {
	ctx := context.Background()

	rmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rmqContainer.Terminate(ctx) })

	amqpURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	const queue = "dataset_image_events_test"
	publisher, err := messaging.NewRabbitMQPublisher(amqpURL, "", "", queue, zap.NewNop())
	require.NoError(t, err)
	defer publisher.Close()

	event := messaging.ImageSavedEvent{
		Type:      messaging.EventImageSaved,
		SessionID: "06-01-2026/10-00-00",
		Label:     "1",
		Class:     "goldfish",
		JobID:     "job-1",
		Path:      "/data/retrieved/1_0.png",
		Width:     320,
		Height:    384,
		SavedAt:   time.Now().UTC(),
	}
	require.NoError(t, publisher.Publish(ctx, event, "run-42"))

	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var msg amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok, err = ch.Get(queue, true)
		return err == nil && ok
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, "run-42", msg.CorrelationId)
	assert.Equal(t, "application/json", msg.ContentType)

	var got messaging.ImageSavedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, event.JobID, got.JobID)
	assert.Equal(t, event.Label, got.Label)
	assert.Equal(t, messaging.EventImageSaved, got.Type)
}
