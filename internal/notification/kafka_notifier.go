package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"gomate-auth/internal/clock"
	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

const (
	EventOTPRequested          = "otp.requested"
	EventVerificationRequested = "email.verification_requested"
)

// Producer is the part of client.KafkaProducer the notifier needs.
type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// OTPRequested is the message an external mailer consumes to deliver a code.
type OTPRequested struct {
	EventID          string    `json:"event_id"`
	Recipient        string    `json:"recipient"`
	Code             string    `json:"code"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
	RequestedAt      time.Time `json:"requested_at"`
}

type VerificationRequested struct {
	EventID     string    `json:"event_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Link        string    `json:"link"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}

// KafkaNotifier publishes delivery requests keyed by recipient, so all
// messages for one address stay ordered on one partition.
type KafkaNotifier struct {
	producer   Producer
	otpTopic   string
	emailTopic string
	clock      clock.Clocker
}

func NewKafkaNotifier(p Producer, otpTopic, emailTopic string, clk clock.Clocker) *KafkaNotifier {
	return &KafkaNotifier{
		producer:   p,
		otpTopic:   otpTopic,
		emailTopic: emailTopic,
		clock:      clk,
	}
}

func (n *KafkaNotifier) Send(ctx context.Context, d otp.Delivery) error {
	msg := OTPRequested{
		EventID:          uuid.NewString(),
		Recipient:        d.Recipient,
		Code:             d.Code,
		FirstName:        d.Profile.FirstName,
		LastName:         d.Profile.LastName,
		ExpiresAt:        d.ExpiresAt,
		ExpiresInMinutes: int(math.Ceil(d.TTL.Minutes())),
		RequestedAt:      n.clock.Now(),
	}
	return n.publish(ctx, n.otpTopic, EventOTPRequested, d.Recipient, msg)
}

func (n *KafkaNotifier) SendLink(ctx context.Context, l model.VerificationLink) error {
	msg := VerificationRequested{
		EventID:     uuid.NewString(),
		Email:       l.Email,
		FirstName:   l.FirstName,
		LastName:    l.LastName,
		Link:        l.Link,
		ExpiresAt:   l.ExpiresAt,
		RequestedAt: n.clock.Now(),
	}
	return n.publish(ctx, n.emailTopic, EventVerificationRequested, l.Email, msg)
}

func (n *KafkaNotifier) publish(ctx context.Context, topic, eventType, key string, msg any) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	headers := map[string]string{
		"event_type":   eventType,
		"content_type": "application/json",
	}
	if err := n.producer.ProduceMessage(ctx, topic, []byte(key), value, headers); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
