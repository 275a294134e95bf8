package gcppubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"smartpay/mq/mq"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
)

const (
	groupIDAttribute = "groupId"
)

// subscriptionInfo holds details about an active Pub/Sub subscription.
type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService provides a generic implementation for GCP Pub/Sub
// operations over one topic.
type GenericPubSubService[M mq.TopicProvider] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
}

// NewGenericPubSubService creates a generic service for a specific message
// type. It ensures the underlying Pub/Sub topic exists, creating it if
// necessary.
func NewGenericPubSubService[M mq.TopicProvider](ctx context.Context, client *pubsub.Client, topicID string) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, fmt.Errorf("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		log.Printf("Created Pub/Sub topic: %s", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

// Publish sends a message to the topic with its group ID as an attribute.
func (s *GenericPubSubService[M]) Publish(msg M) error {
	typeName := reflect.TypeOf(msg).Name()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName, err)
	}

	pubsubMsg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			groupIDAttribute: msg.GetTopic().String(),
		},
	}

	result := s.topic.Publish(s.ctx, pubsubMsg)
	_, err = result.Get(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName, s.topic.ID(), err)
	}
	return nil
}

// Subscribe creates a new filtered subscription on GCP and starts listening
// for messages of one group.
func (s *GenericPubSubService[M]) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New() // Internal ID for tracking
	typeName := reflect.TypeOf(*new(M)).Name()

	gcpSubName := fmt.Sprintf("sub-%s-%s-%s", typeName, groupID.String(), subscriptionID.String())

	config := pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           fmt.Sprintf("attributes.%s = \"%s\"", groupIDAttribute, groupID.String()),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	}

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, config)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s for %s: %w", gcpSubName, typeName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			// Delete the subscription from GCP to prevent resource leaks.
			if deleteErr := gcpSub.Delete(context.Background()); deleteErr != nil {
				log.Printf("Error deleting GCP subscription %s: %v", gcpSub.ID(), deleteErr)
			}
			close(msgChan)
		}()

		// Receive blocks until the context is cancelled.
		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				log.Printf("Error unmarshaling %s for %s: %v. Body: %s", typeName, subscriptionID, err, string(pubsubMsg.Data))
				return
			}

			select {
			case msgChan <- msg:
			case <-time.After(2 * time.Second):
				log.Printf("Timeout sending %s to msgChan for %s.", typeName, subscriptionID)
			case <-receiveCtx.Done():
				return
			}
		})

		if err != nil && err != context.Canceled {
			log.Printf("Error in Receive loop for %s subscription %s: %v", typeName, subscriptionID, err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe stops the message receiver and deletes the subscription from
// GCP.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		// It's removed from the map inside the goroutine's defer block.
		// Here we just trigger the cancellation.
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, reflect.TypeOf(*new(M)).Name())
	}

	return nil
}

// Close gracefully shuts down all active subscriptions for this service.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	defer s.subscriptionsMutex.Unlock()

	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
}

// pubsubMessageQueue pairs a generic service with the action it serves.
type pubsubMessageQueue[M mq.TopicProvider] struct {
	genericService *GenericPubSubService[M]
	action         mq.Action
}

func newPubSubMessageQueue[M mq.TopicProvider](ctx context.Context, client *pubsub.Client, kind string, action mq.Action) (*pubsubMessageQueue[M], error) {
	topicID := fmt.Sprintf("%s-%s", kind, action.String())
	gs, err := NewGenericPubSubService[M](ctx, client, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to create generic service for %s: %w", topicID, err)
	}
	return &pubsubMessageQueue[M]{genericService: gs, action: action}, nil
}

func (q *pubsubMessageQueue[M]) GetAction() mq.Action { return q.action }
func (q *pubsubMessageQueue[M]) Publish(msg M) error  { return q.genericService.Publish(msg) }
func (q *pubsubMessageQueue[M]) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error) {
	return q.genericService.Subscribe(groupID)
}
func (q *pubsubMessageQueue[M]) DeSubscribe(id uuid.UUID) error {
	return q.genericService.DeSubscribe(id)
}

// --------- group message queue wrapper implementation ---------

type GCPGroupMessageQueueWrapper struct {
	ExpenseMQArray    [mq.ActionCnt]*pubsubMessageQueue[mq.ExpenseMessage]
	MemberMQArray     [mq.ActionCnt]*pubsubMessageQueue[mq.MemberMessage]
	SettlementMQArray [mq.ActionCnt]*pubsubMessageQueue[mq.SettlementMessage]
	GroupMQArray      [mq.ActionCnt]*pubsubMessageQueue[mq.GroupMessage]
}

func (wrapper *GCPGroupMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.ExpenseMQArray[action] == nil {
		return nil
	}
	return wrapper.ExpenseMQArray[action]
}

func (wrapper *GCPGroupMessageQueueWrapper) GetMemberMessageQueue(action mq.Action) mq.MemberMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.MemberMQArray[action] == nil {
		return nil
	}
	return wrapper.MemberMQArray[action]
}

func (wrapper *GCPGroupMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.SettlementMQArray[action] == nil {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

func (wrapper *GCPGroupMessageQueueWrapper) GetGroupMessageQueue(action mq.Action) mq.GroupMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.GroupMQArray[action] == nil {
		return nil
	}
	return wrapper.GroupMQArray[action]
}

// NewGCPGroupMessageQueueWrapper creates a new MQ wrapper instance using
// GCP Pub/Sub.
func NewGCPGroupMessageQueueWrapper(ctx context.Context, projectID string) (mq.GroupMessageQueueWrapper, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Pub/Sub client for project %s: %w", projectID, err)
	}

	wrapper := &GCPGroupMessageQueueWrapper{}

	wrapper.ExpenseMQArray[mq.ActionCreate], err = newPubSubMessageQueue[mq.ExpenseMessage](ctx, client, "group-expense", mq.ActionCreate)
	if err != nil {
		return nil, err
	}

	wrapper.MemberMQArray[mq.ActionCreate], err = newPubSubMessageQueue[mq.MemberMessage](ctx, client, "group-member", mq.ActionCreate)
	if err != nil {
		return nil, err
	}

	wrapper.SettlementMQArray[mq.ActionUpdate], err = newPubSubMessageQueue[mq.SettlementMessage](ctx, client, "group-settlement", mq.ActionUpdate)
	if err != nil {
		return nil, err
	}

	wrapper.GroupMQArray[mq.ActionUpdate], err = newPubSubMessageQueue[mq.GroupMessage](ctx, client, "group-info", mq.ActionUpdate)
	if err != nil {
		return nil, err
	}
	wrapper.GroupMQArray[mq.ActionDelete], err = newPubSubMessageQueue[mq.GroupMessage](ctx, client, "group-info", mq.ActionDelete)
	if err != nil {
		return nil, err
	}

	return wrapper, nil
}
