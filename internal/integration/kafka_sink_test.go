//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/majindogo/field-survey-etl/internal/adapter/kafka"
	"github.com/majindogo/field-survey-etl/internal/config"
	"github.com/majindogo/field-survey-etl/internal/table"
)

const testSinkTopic = "test-processed-field-records"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-broker Kafka container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPublishTableRoundTrip publishes a processed field table to a real
// broker and verifies what a downstream consumer receives.
func TestPublishTableRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	tbl := table.New("Field_ID", "Crop_type", "Annual_yield", "Elevation", "Weather_station")
	require.NoError(t, tbl.AppendRow(int64(1), "cassava", 1.2, 120.5, "4"))
	require.NoError(t, tbl.AppendRow(int64(2), "wheat", 0.9, 300.0, "1"))
	require.NoError(t, tbl.AppendRow(int64(3), "tea", 2.1, 15.0, nil))

	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })
	require.NoError(t, publisher.PublishTable(ctx, tbl, "Field_ID"))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byKey := make(map[string]map[string]any, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		var record map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &record))
		byKey[string(msg.Key)] = record

		require.Len(t, msg.Headers, 1)
		assert.Equal(t, "processed_at", msg.Headers[0].Key)
		_, err = time.Parse(time.RFC3339, string(msg.Headers[0].Value))
		assert.NoError(t, err, "processed_at should be valid RFC3339")
	}

	require.Len(t, byKey, 3)
	assert.Equal(t, "cassava", byKey["1"]["Crop_type"])
	assert.Equal(t, 300.0, byKey["2"]["Elevation"])
	assert.Nil(t, byKey["3"]["Weather_station"], "unmatched field publishes a null station")
}
