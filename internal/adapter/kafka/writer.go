// Package kafka publishes processed field records to a Kafka sink topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/majindogo/field-survey-etl/internal/config"
	"github.com/majindogo/field-survey-etl/internal/table"
)

var clock = clockwork.NewRealClock()

// SetClock swaps the package clock, for tests. Passing nil restores the
// real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Publisher produces processed field records to a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishTable serializes every row of the processed table as a JSON object
// keyed by keyColumn and publishes the batch in a single WriteMessages call.
func (p *Publisher) PublishTable(ctx context.Context, tbl *table.Table, keyColumn string) error {
	if tbl == nil || tbl.NumRows() == 0 {
		return nil
	}
	msgs, err := serializeRows(tbl, keyColumn)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Info("published processed field records", "count", len(msgs), "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeRows marshals each table row into a Kafka message whose value is
// a column-name-to-cell JSON object.
func serializeRows(tbl *table.Table, keyColumn string) ([]kafkago.Message, error) {
	keyIdx, ok := tbl.ColumnIndex(keyColumn)
	if !ok {
		return nil, fmt.Errorf("serialize field records: %w: %s", table.ErrUnknownColumn, keyColumn)
	}
	processedAt := []byte(clock.Now().UTC().Format(time.RFC3339))

	msgs := make([]kafkago.Message, len(tbl.Rows))
	for i, row := range tbl.Rows {
		record := make(map[string]any, len(tbl.Columns))
		for j, col := range tbl.Columns {
			record[col] = row[j]
		}
		data, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("serialize field record %d: %w", i, err)
		}
		msgs[i] = kafkago.Message{
			Key:   []byte(table.KeyString(row[keyIdx])),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "processed_at", Value: processedAt},
			},
		}
	}
	return msgs, nil
}
