package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// WriterSink writes one line per alert, as JSON or as a short text banner.
type WriterSink struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewWriterSink returns a text sink; use NewJSONWriterSink for JSON lines.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewJSONWriterSink writes alerts as JSON lines.
func NewJSONWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, json: true}
}

// Notify writes a.
func (s *WriterSink) Notify(ctx context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.json {
		return json.NewEncoder(s.w).Encode(a)
	}
	scope := ""
	if a.Zone != "" {
		scope = " [" + a.Zone
		if a.Algorithm != "" {
			scope += "/" + a.Algorithm
		}
		scope += "]"
	}
	_, err := fmt.Fprintf(s.w, "%s %s%s %s\n",
		a.Time.Format("2006-01-02 15:04:05"), strings.ToUpper(string(a.Level)), scope, a.Message)
	return err
}

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes alerts as JSON messages keyed by zone.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaSink connects to brokers and publishes to topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: w, topic: topic}
}

// NewKafkaSinkWithWriter wraps an existing writer.
func NewKafkaSinkWithWriter(w MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

// Notify publishes a.
func (k *KafkaSink) Notify(ctx context.Context, a Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "encode alert")
	}
	key := a.Zone
	if key == "" {
		key = a.RunID
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b}); err != nil {
		return errors.NewConnectivityError("kafka:"+k.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
