package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	at := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	p := &KafkaPublisher{writer: w, now: func() time.Time { return at }}

	err := p.Publish(context.Background(), Event{
		Type:     AppointmentCreated,
		EntityID: "appt-1",
		Actor:    "user-1",
		Data:     map[string]interface{}{"status": "scheduled"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("appt-1"), msg.Key)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, AppointmentCreated, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, at, decoded.At)
	assert.Equal(t, "scheduled", decoded.Data["status"])
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, now: time.Now}

	err := p.Publish(context.Background(), Event{Type: InviteIssued, EntityID: "i"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invite.issued")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), Event{Type: InviteIssued})
	_ = r.Publish(context.Background(), Event{Type: InviteRedeemed})
	assert.Equal(t, []string{InviteIssued, InviteRedeemed}, r.Types())
}
