package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gomate-auth/internal/clock"
	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

var delivery = otp.Delivery{
	Recipient: "a@example.com",
	Code:      "012345",
	Profile:   otp.Profile{FirstName: "Ada", LastName: "Lovelace"},
	ExpiresAt: now.Add(5 * time.Minute),
	TTL:       5 * time.Minute,
}

var link = model.VerificationLink{
	Email:     "a@example.com",
	FirstName: "Ada",
	Link:      "http://localhost:8086/verify-email?token=abc",
	ExpiresAt: now.Add(24 * time.Hour),
	TTL:       24 * time.Hour,
}

type message struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type fakeProducer struct {
	messages []message
	err      error
}

func (p *fakeProducer) ProduceMessage(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message{topic, string(key), value, headers})
	return nil
}

func TestLogNotifier_RendersEmail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), delivery))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a@example.com", fields["to"])
	assert.Equal(t, otpSubject, fields["subject"])
	body := fields["body"].(string)
	assert.Contains(t, body, "Hi Ada Lovelace!")
	assert.Contains(t, body, "Your verification code is: 012345")
	assert.Contains(t, body, "expire in 5 minutes")
}

func TestLogNotifier_SendLink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.SendLink(context.Background(), link))

	body := logs.All()[0].ContextMap()["body"].(string)
	assert.Contains(t, body, "Hi Ada!")
	assert.Contains(t, body, link.Link)
	assert.Contains(t, body, "expires in 24 hours")
}

func TestLogNotifier_CancelledContext(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Send(ctx, delivery), context.Canceled)
}

func TestKafkaNotifier_PublishesOTPRequested(t *testing.T) {
	p := &fakeProducer{}
	n := NewKafkaNotifier(p, "otp-topic", "email-topic", clock.NewManual(now))

	require.NoError(t, n.Send(context.Background(), delivery))

	require.Len(t, p.messages, 1)
	m := p.messages[0]
	assert.Equal(t, "otp-topic", m.topic)
	assert.Equal(t, "a@example.com", m.key)
	assert.Equal(t, EventOTPRequested, m.headers["event_type"])

	var got OTPRequested
	require.NoError(t, json.Unmarshal(m.value, &got))
	assert.NotEmpty(t, got.EventID)
	assert.Equal(t, "012345", got.Code)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, 5, got.ExpiresInMinutes)
	assert.True(t, now.Equal(got.RequestedAt))
}

func TestKafkaNotifier_PublishesVerificationLink(t *testing.T) {
	p := &fakeProducer{}
	n := NewKafkaNotifier(p, "otp-topic", "email-topic", clock.NewManual(now))

	require.NoError(t, n.SendLink(context.Background(), link))

	require.Len(t, p.messages, 1)
	assert.Equal(t, "email-topic", p.messages[0].topic)

	var got VerificationRequested
	require.NoError(t, json.Unmarshal(p.messages[0].value, &got))
	assert.Equal(t, link.Link, got.Link)
}

func TestKafkaNotifier_ProducerError(t *testing.T) {
	boom := errors.New("broker down")
	n := NewKafkaNotifier(&fakeProducer{err: boom}, "o", "e", clock.NewManual(now))

	assert.ErrorIs(t, n.Send(context.Background(), delivery), boom)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	good := &fakeProducer{}
	m := Multi{
		NewKafkaNotifier(&fakeProducer{err: boom}, "o", "e", clock.NewManual(now)),
		NewKafkaNotifier(good, "o", "e", clock.NewManual(now)),
		NewLogNotifier(zap.NewNop()),
	}

	err := m.Send(context.Background(), delivery)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, good.messages, 1, "a failing channel does not stop the others")

	assert.ErrorIs(t, m.SendLink(context.Background(), link), boom)
	assert.NoError(t, Multi{NewLogNotifier(zap.NewNop())}.Send(context.Background(), delivery))
}
