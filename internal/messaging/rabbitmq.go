package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQPublisher публикует события в очередь (exchange пустой) или в exchange.
type RabbitMQPublisher struct {
	conn         *amqp091.Connection
	ch           *amqp091.Channel
	exchangeName string
	routingKey   string
	queueName    string
	logger       *zap.Logger
	mu           sync.Mutex
}

// NewRabbitMQPublisher подключается к брокеру и объявляет очередь или exchange.
// Соединение принадлежит паблишеру и закрывается в Close.
func NewRabbitMQPublisher(url, exchange, routingKey, queueName string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is empty")
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	p, err := newPublisherOnConn(conn, exchange, routingKey, queueName, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newPublisherOnConn(conn *amqp091.Connection, exchange, routingKey, queueName string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for publisher: %w", err)
	}

	if exchange == "" {
		if queueName == "" {
			_ = ch.Close()
			return nil, errors.New("either exchange or queue name must be set")
		}
		_, err := ch.QueueDeclare(
			queueName,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("failed to declare events queue %s: %w", queueName, err)
		}
		// Без exchange routing key - это имя очереди
		if routingKey == "" {
			routingKey = queueName
		}
	} else {
		err := ch.ExchangeDeclare(
			exchange,
			amqp091.ExchangeTopic,
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
		}
	}

	logger.Info("RabbitMQ events publisher initialized",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
	)

	return &RabbitMQPublisher{
		conn:         conn,
		ch:           ch,
		exchangeName: exchange,
		routingKey:   routingKey,
		queueName:    queueName,
		logger:       logger.Named("rabbitmq_publisher"),
	}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, payload interface{}, correlationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("publisher channel is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchangeName,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение. Повторный вызов безопасен.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
