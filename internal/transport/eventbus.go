package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/genuine-oj/judger/internal/grader"
	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
)

// EventBusConfig configures the optional Kafka fan-out, mirroring the
// producer-side defaults of judge_service's KafkaConfig.
type EventBusConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
}

// kafkaWriter is the slice of *kafka.Writer's method set EventBusSink
// depends on, so tests can substitute a fake instead of dialing a real
// broker — the same seam judge_service's KafkaQueue skips (it always
// drives a concrete *kafka.Writer) but that this wrapper needs since it
// has no integration-test harness of its own.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventBusSink wraps an existing EventSink and additionally publishes
// each task's final report onto a Kafka topic, for downstream consumers
// (a results dashboard, a ranking recalculation job) that never attach
// to the TCP/WebSocket stream directly. Interim compile/part events are
// forwarded to the wrapped sink only — the bus carries reports, not a
// live progress feed.
type EventBusSink struct {
	inner  grader.EventSink
	writer kafkaWriter
	topic  string
	taskID string
}

// NewEventBusSink builds the Kafka-backed fan-out wrapper.
func NewEventBusSink(cfg EventBusConfig, taskID string, inner grader.EventSink) *EventBusSink {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 50 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
	}
	return newEventBusSink(taskID, inner, writer, cfg.Topic)
}

func newEventBusSink(taskID string, inner grader.EventSink, writer kafkaWriter, topic string) *EventBusSink {
	return &EventBusSink{inner: inner, writer: writer, topic: topic, taskID: taskID}
}

// Emit forwards every event to the wrapped sink, and additionally
// publishes the final report to Kafka.
func (s *EventBusSink) Emit(evt grader.TaskEvent) error {
	if err := s.inner.Emit(evt); err != nil {
		return err
	}
	if evt.Kind != grader.EventFinal {
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("marshal final report for event bus failed")
	}
	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(s.taskID),
		Value: payload,
		Time:  time.Now(),
	}
	if err := s.writer.WriteMessages(context.Background(), msg); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("publish final report to event bus failed")
	}
	return nil
}

// Close closes the wrapped sink, then the Kafka writer.
func (s *EventBusSink) Close() error {
	innerErr := s.inner.Close()
	writerErr := s.writer.Close()
	if innerErr != nil {
		return innerErr
	}
	return writerErr
}
