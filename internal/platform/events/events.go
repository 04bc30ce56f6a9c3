// Package events publishes domain events (appointment booked, invite
// redeemed, ...) to Kafka so other systems can follow practice activity.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	AppointmentCreated   = "appointment.created"
	AppointmentUpdated   = "appointment.updated"
	AppointmentStatus    = "appointment.status_changed"
	AppointmentDeleted   = "appointment.deleted"
	NoteCreated          = "clinical_note.created"
	NoteUpdated          = "clinical_note.updated"
	InviteIssued         = "invite.issued"
	InviteRedeemed       = "invite.redeemed"
	InviteRevoked        = "invite.revoked"
	DoctorApproved       = "doctor.approved"
	ClientsImported      = "clients.imported"
	AppointmentsImported = "appointments.imported"
	DocumentUploaded     = "document.uploaded"
)

// Event is the envelope written to the stream. Data must not carry clinical
// note text; consumers get ids and statuses only.
type Event struct {
	Type     string                 `json:"type"`
	EntityID string                 `json:"entity_id"`
	Actor    string                 `json:"actor,omitempty"`
	At       time.Time              `json:"at"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by entity id, so every event of
// one entity lands on the same partition in order.
type KafkaPublisher struct {
	writer kafkaWriter
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = p.now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.EntityID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", evt.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the log. It is used when no brokers are
// configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	p.logger.Info().
		Str("event_type", evt.Type).
		Str("entity_id", evt.EntityID).
		Str("actor", evt.Actor).
		Msg("domain event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	Events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
