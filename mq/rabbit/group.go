package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"smartpay/mq/mq"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "group_events_exchange" // All group ledger events go through this exchange
)

// Message kinds used to build routing keys.
const (
	expenseMessageKind    = "expense"
	memberMessageKind     = "member"
	settlementMessageKind = "settlement"
	groupMessageKind      = "group"
)

func routingKeyFor(kind string, action mq.Action) string {
	return fmt.Sprintf("%s.%s", kind, action.String())
}

// rabbitMessageQueue implements mq.MessageQueue on top of one routing key.
// Each subscriber gets its own server-named exclusive queue bound to the
// shared exchange, so every subscriber sees every message and group
// filtering happens client side.
type rabbitMessageQueue[M mq.TopicProvider] struct {
	action     mq.Action
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	routingKey string
	mu         sync.RWMutex // Protects the consumers map
	consumers  map[uuid.UUID]*amqp091.Channel
}

func newRabbitMessageQueue[M mq.TopicProvider](action mq.Action, kind string, conn *amqp091.Connection) (*rabbitMessageQueue[M], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := declareExchange(ch, exchangeName); err != nil {
		ch.Close()
		return nil, err
	}

	return &rabbitMessageQueue[M]{
		action:     action,
		conn:       conn,
		channel:    ch,
		routingKey: routingKeyFor(kind, action),
		consumers:  make(map[uuid.UUID]*amqp091.Channel),
	}, nil
}

func (q *rabbitMessageQueue[M]) GetAction() mq.Action {
	return q.action
}

// Publish sends a message to the exchange under this queue's routing key.
func (q *rabbitMessageQueue[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		q.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe binds a fresh exclusive queue to the exchange and forwards
// messages whose topic matches groupID.
func (q *rabbitMessageQueue[M]) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error) {
	subCh, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open a subscriber channel: %w", err)
	}

	queue, err := subCh.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		subCh.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	if err := subCh.QueueBind(queue.Name, q.routingKey, exchangeName, false, nil); err != nil {
		subCh.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	msgs, err := subCh.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		subCh.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	outputChan := make(chan M)

	q.mu.Lock()
	q.consumers[subscriberID] = subCh
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			if ch, ok := q.consumers[subscriberID]; ok {
				delete(q.consumers, subscriberID)
				ch.Close()
			}
			q.mu.Unlock()
			close(outputChan)
		}()

		for d := range msgs {
			var msg M
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Printf("Failed to unmarshal message on %s: %v", q.routingKey, err)
				continue
			}
			if msg.GetTopic() != groupID {
				continue
			}

			select {
			case outputChan <- msg:
			case <-time.After(1 * time.Second): // Prevent blocking indefinitely
				log.Printf("Timeout sending message to consumer %s. Skipping.", subscriberID)
			}
		}
	}()

	return subscriberID, outputChan, nil
}

// DeSubscribe closes the subscriber's AMQP channel, which ends its
// delivery stream and lets the forwarding goroutine exit.
func (q *rabbitMessageQueue[M]) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, ok := q.consumers[subscriberID]; ok {
		delete(q.consumers, subscriberID)
		ch.Close()
		return nil
	}
	return fmt.Errorf("consumer with ID %s not found for routing key %s", subscriberID, q.routingKey)
}

func (q *rabbitMessageQueue[M]) close() {
	q.mu.Lock()
	for id, ch := range q.consumers {
		delete(q.consumers, id)
		ch.Close()
	}
	q.mu.Unlock()
	if q.channel != nil {
		q.channel.Close()
	}
}

// rabbitGroupMessageQueueWrapper implements mq.GroupMessageQueueWrapper.
type rabbitGroupMessageQueueWrapper struct {
	ExpenseMQArray    [mq.ActionCnt]*rabbitMessageQueue[mq.ExpenseMessage]
	MemberMQArray     [mq.ActionCnt]*rabbitMessageQueue[mq.MemberMessage]
	SettlementMQArray [mq.ActionCnt]*rabbitMessageQueue[mq.SettlementMessage]
	GroupMQArray      [mq.ActionCnt]*rabbitMessageQueue[mq.GroupMessage]
	conn              *amqp091.Connection // Keep a reference to the connection to close it later
}

// NewRabbitGroupMessageQueueWrapper creates the RabbitMQ backend.
func NewRabbitGroupMessageQueueWrapper(conn *amqp091.Connection) (mq.GroupMessageQueueWrapper, error) {
	wrapper := &rabbitGroupMessageQueueWrapper{
		conn: conn,
	}

	var err error

	wrapper.ExpenseMQArray[mq.ActionCreate], err = newRabbitMessageQueue[mq.ExpenseMessage](mq.ActionCreate, expenseMessageKind, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense create mq: %w", err)
	}

	wrapper.MemberMQArray[mq.ActionCreate], err = newRabbitMessageQueue[mq.MemberMessage](mq.ActionCreate, memberMessageKind, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create member create mq: %w", err)
	}

	wrapper.SettlementMQArray[mq.ActionUpdate], err = newRabbitMessageQueue[mq.SettlementMessage](mq.ActionUpdate, settlementMessageKind, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement update mq: %w", err)
	}

	wrapper.GroupMQArray[mq.ActionUpdate], err = newRabbitMessageQueue[mq.GroupMessage](mq.ActionUpdate, groupMessageKind, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create group update mq: %w", err)
	}
	wrapper.GroupMQArray[mq.ActionDelete], err = newRabbitMessageQueue[mq.GroupMessage](mq.ActionDelete, groupMessageKind, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create group delete mq: %w", err)
	}

	return wrapper, nil
}

func (wrapper *rabbitGroupMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.ExpenseMQArray[action] == nil {
		return nil
	}
	return wrapper.ExpenseMQArray[action]
}

func (wrapper *rabbitGroupMessageQueueWrapper) GetMemberMessageQueue(action mq.Action) mq.MemberMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.MemberMQArray[action] == nil {
		return nil
	}
	return wrapper.MemberMQArray[action]
}

func (wrapper *rabbitGroupMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.SettlementMQArray[action] == nil {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

func (wrapper *rabbitGroupMessageQueueWrapper) GetGroupMessageQueue(action mq.Action) mq.GroupMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.GroupMQArray[action] == nil {
		return nil
	}
	return wrapper.GroupMQArray[action]
}

// Close closes all channels and the RabbitMQ connection.
func (wrapper *rabbitGroupMessageQueueWrapper) Close() {
	for _, q := range wrapper.ExpenseMQArray {
		if q != nil {
			q.close()
		}
	}
	for _, q := range wrapper.MemberMQArray {
		if q != nil {
			q.close()
		}
	}
	for _, q := range wrapper.SettlementMQArray {
		if q != nil {
			q.close()
		}
	}
	for _, q := range wrapper.GroupMQArray {
		if q != nil {
			q.close()
		}
	}
	if wrapper.conn != nil {
		wrapper.conn.Close()
	}
}
