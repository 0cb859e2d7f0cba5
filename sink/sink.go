// Package sink holds the notification and audit destinations the Workflow
// emits to.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/warp/leave-engine/leave"
	"go.uber.org/zap"
)

// NotificationTopic is the default kafka topic for leave notifications.
const NotificationTopic = "leave.notifications"

// =============================================================================
// KAFKA NOTIFIER
// =============================================================================

// MessageWriter is the part of *kafkago.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Notification is the JSON value published per notification.
type Notification struct {
	EmployeeID string    `json:"employeeId"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sentAt"`
}

// Kafka publishes one message per notification, keyed by employee id so a
// given employee's notifications stay ordered within a partition.
type Kafka struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

var _ leave.Notifier = (*Kafka)(nil)

func NewKafka(writer MessageWriter, topic string) *Kafka {
	if topic == "" {
		topic = NotificationTopic
	}
	return &Kafka{writer: writer, topic: topic, now: time.Now}
}

// NewKafkaWriter builds the writer NewKafka expects.
func NewKafkaWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (k *Kafka) Notify(ctx context.Context, employeeID, title, message string) error {
	payload, err := json.Marshal(Notification{
		EmployeeID: employeeID,
		Title:      title,
		Message:    message,
		SentAt:     k.now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, kafkago.Message{
		Topic: k.topic,
		Key:   []byte(employeeID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("leave.notification")},
		},
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// =============================================================================
// LOG SINKS
// =============================================================================

// Log writes notifications to a zap logger. Used when kafka is disabled.
type Log struct {
	logger *zap.Logger
}

var _ leave.Notifier = (*Log)(nil)

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("notification")}
}

func (l *Log) Notify(_ context.Context, employeeID, title, message string) error {
	l.logger.Info("notification",
		zap.String("employee_id", employeeID),
		zap.String("title", title),
		zap.String("message", message),
	)
	return nil
}

// LogAudit writes audit entries to a zap logger.
type LogAudit struct {
	logger *zap.Logger
}

var _ leave.AuditSink = (*LogAudit)(nil)

func NewLogAudit(logger *zap.Logger) *LogAudit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAudit{logger: logger.Named("audit")}
}

func (l *LogAudit) Record(_ context.Context, e leave.AuditEntry) error {
	fields := []zap.Field{
		zap.String("timestamp", e.At.UTC().Format(time.RFC3339)),
		zap.String("action", string(e.Action)),
		zap.String("actor", e.Actor),
	}
	if e.After != nil {
		fields = append(fields,
			zap.String("request_id", e.After.ID),
			zap.String("status", string(e.After.Status)),
		)
	} else if e.Before != nil {
		fields = append(fields, zap.String("request_id", e.Before.ID))
	}
	if e.Before != nil {
		fields = append(fields, zap.String("previous_status", string(e.Before.Status)))
	}
	l.logger.Info("audit event", fields...)
	return nil
}

// =============================================================================
// FAN-OUT
// =============================================================================

// MultiAudit records to every sink and joins their errors.
type MultiAudit []leave.AuditSink

var _ leave.AuditSink = MultiAudit(nil)

func (m MultiAudit) Record(ctx context.Context, e leave.AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
