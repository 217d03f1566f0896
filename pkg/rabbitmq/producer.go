/**
 * @description
 * This package publishes settlement events to RabbitMQ so downstream services
 * (the member inbox, statistics, audit) learn about closures and freshly
 * issued cheques. It encapsulates connecting, declaring the durable topic
 * exchange, and publishing JSON payloads.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// SettlementExchange is the topic exchange all settlement events go through.
const SettlementExchange = "settlement_events"

// Routing keys published on the settlement exchange.
const (
	RoutingKeyPlanClosed          = "flightplan.closed"
	RoutingKeySettlementCompleted = "settlement.completed"
	RoutingKeyChequeIssued        = "cheque.issued"
)

// FlightPlanClosedEvent is published for every closure, settled or not.
type FlightPlanClosedEvent struct {
	PlanID            uuid.UUID `json:"plan_id"`
	ActualDurationMin int       `json:"actual_duration_min"`
	SettlementOK      bool      `json:"settlement_ok"`
	ClosedAt          time.Time `json:"closed_at"`
}

// SettlementCompletedEvent carries the full waterfall breakdown of a
// settlement whose monetary portion fully succeeded.
type SettlementCompletedEvent struct {
	PlanID       uuid.UUID `json:"plan_id"`
	Gross        int64     `json:"gross"`
	Coefficient  float64   `json:"coefficient"`
	TaxTotal     int64     `json:"tax_total"`
	SalaryPaid   int64     `json:"salary_paid"`
	LessorShare  int64     `json:"lessor_share"`
	LoanRepaid   int64     `json:"loan_repaid"`
	CompanyNet   int64     `json:"company_net"`
	Unprofitable bool      `json:"unprofitable"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChequeIssuedEvent is published per cheque so the inbox service can notify
// the recipient that there is something to redeem.
type ChequeIssuedEvent struct {
	MessageID     uuid.UUID `json:"message_id"`
	RecipientKind string    `json:"recipient_kind"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	FlightPlanID  uuid.UUID `json:"flight_plan_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher is the interface implemented by types that can publish settlement events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishFlightPlanClosed(ctx context.Context, event FlightPlanClosedEvent) error
	PublishSettlementCompleted(ctx context.Context, event SettlementCompletedEvent) error
	PublishChequeIssued(ctx context.Context, event ChequeIssuedEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// EventProducerFallback is a minimal no-op publisher used when RabbitMQ is
// unavailable at startup. Settlements never fail because the broker is down.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) PublishFlightPlanClosed(ctx context.Context, event FlightPlanClosedEvent) error {
	return p.Publish(ctx, SettlementExchange, RoutingKeyPlanClosed, event)
}

func (p *EventProducerFallback) PublishSettlementCompleted(ctx context.Context, event SettlementCompletedEvent) error {
	return p.Publish(ctx, SettlementExchange, RoutingKeySettlementCompleted, event)
}

func (p *EventProducerFallback) PublishChequeIssued(ctx context.Context, event ChequeIssuedEvent) error {
	return p.Publish(ctx, SettlementExchange, RoutingKeyChequeIssued, event)
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// Publish sends a message to a specific exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return chErr
		}
		p.channel = ch
		if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		return err
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        jsonBody,
	}

	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		// One-shot retry: reopen channel and try again
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return err
		}
		p.channel = ch
		if exErr := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); exErr != nil {
			return err
		}
		return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
	}
	return nil
}

// PublishFlightPlanClosed publishes the closure event for a plan.
func (p *EventProducer) PublishFlightPlanClosed(ctx context.Context, event FlightPlanClosedEvent) error {
	return p.Publish(ctx, SettlementExchange, RoutingKeyPlanClosed, event)
}

// PublishSettlementCompleted publishes the waterfall breakdown of a settlement.
func (p *EventProducer) PublishSettlementCompleted(ctx context.Context, event SettlementCompletedEvent) error {
	return p.Publish(ctx, SettlementExchange, RoutingKeySettlementCompleted, event)
}

// PublishChequeIssued publishes a freshly issued cheque for inbox fan-out.
func (p *EventProducer) PublishChequeIssued(ctx context.Context, event ChequeIssuedEvent) error {
	return p.Publish(ctx, SettlementExchange, RoutingKeyChequeIssued, event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
