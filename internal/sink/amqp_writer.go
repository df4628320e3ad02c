package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"metro-sim/internal/vehicle"
)

// DefaultAMQPExchange is the topic exchange snapshots are published to.
const DefaultAMQPExchange = "metro.vehicles"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPWriter publishes snapshots to a RabbitMQ topic exchange with routing
// key vehicles.<route>.<vehicle>.
type AMQPWriter struct {
	ch       amqpChannel
	exchange string
	timeout  time.Duration

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPWriter dials url and declares a durable topic exchange.
func NewAMQPWriter(url, exchange string, log *slog.Logger) (*AMQPWriter, error) {
	if exchange == "" {
		exchange = DefaultAMQPExchange
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	go func() {
		if e, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1)); ok && e != nil {
			log.Warn("rabbitmq connection closed", "code", e.Code, "reason", e.Reason)
		}
	}()
	log.Info("amqp writer ready", "exchange", exchange)
	return &AMQPWriter{ch: ch, exchange: exchange, timeout: 5 * time.Second, conn: conn, channel: ch}, nil
}

func (w *AMQPWriter) Name() string { return "amqp" }

// RoutingKey returns the routing key a snapshot is published with.
func (w *AMQPWriter) RoutingKey(st vehicle.State) string {
	return "vehicles." + subjectToken(st.RouteID) + "." + subjectToken(st.ID)
}

// Write publishes a snapshot.
func (w *AMQPWriter) Write(st vehicle.State) error {
	body, err := json.Marshal(NewMessage(st))
	if err != nil {
		return err
	}
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return w.ch.PublishWithContext(ctx, w.exchange, w.RoutingKey(st), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    st.UpdatedAt(),
		Type:         "vehicleUpdate",
		AppId:        "metro-sim",
		Body:         body,
	})
}

// Close closes the channel and the connection.
func (w *AMQPWriter) Close() error {
	var errs []error
	if w.channel != nil {
		errs = append(errs, w.channel.Close())
	}
	if w.conn != nil {
		errs = append(errs, w.conn.Close())
	}
	return errors.Join(errs...)
}
