package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// DeadLetterExchange receives ledger events rejected by durable consumers
const DeadLetterExchange = "dlx.ledger"

// RabbitMQ holds the broker connection and the single channel the ledger
// publisher and consumers share.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *logger.Logger
	mu      sync.RWMutex
	closed  bool
}

// New dials the broker. A failed first dial is retried max_retries times,
// reconnect_delay apart, so the service can start before the broker does.
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config: cfg,
		logger: log,
	}

	if err := rmq.connect(); err != nil {
		log.Warn().Err(err).Msg("broker not reachable, retrying")
		if err := rmq.Reconnect(context.Background()); err != nil {
			return nil, err
		}
	}

	return rmq, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}

	r.conn, r.channel = conn, ch
	r.logger.Info().Str("exchange", r.config.Exchange).Msg("connected to broker")
	return nil
}

// Channel returns the shared channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the channel and the connection. A closed RabbitMQ is never
// reconnected.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("close channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close broker connection: %w", err)
		}
	}

	r.logger.Info().Msg("broker connection closed")
	return nil
}

// Health reports "up" while the connection is open. Served by /health.
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange such as ledger.events
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.channel.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// DeclareQueue declares a durable queue whose rejected messages go to the
// dead letter exchange
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.channel.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
}

// DeclareTransientQueue declares a server-named exclusive queue that
// disappears with the connection, for observers like stockctl tail
func (r *RabbitMQ) DeclareTransientQueue() (amqp.Queue, error) {
	return r.channel.QueueDeclare("", false, true, true, false, nil)
}

// DeclareDeadLetterQueue declares the dead letter exchange and binds
// dlq.<queue> to it for every routing key
func (r *RabbitMQ) DeclareDeadLetterQueue(queue string) error {
	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}

	dlq := "dlq." + queue
	if _, err := r.channel.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}
	if err := r.BindQueue(dlq, DeadLetterExchange, "#"); err != nil {
		return fmt.Errorf("bind %s: %w", dlq, err)
	}
	return nil
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	return r.channel.QueueBind(queue, routingKey, exchange, false, nil)
}

// Reconnect redials up to max_retries times, waiting reconnect_delay
// between attempts or until ctx is done.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("broker connection is closed")
	}

	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		err := r.connect()
		if err == nil {
			return nil
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("broker reconnect failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.ReconnectDelay):
		}
	}

	return fmt.Errorf("broker unreachable after %d attempts", r.config.MaxRetries)
}
