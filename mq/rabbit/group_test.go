package rabbit_test // Testing the 'rabbit' package as a black box providing 'mq' interfaces

import (
	"os"
	"testing"
	"time"

	"smartpay/mq/mq"
	rabbitMQ "smartpay/mq/rabbit"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// getTestConnection establishes a real AMQP connection for tests.
// Tests are skipped when no broker is configured.
func getTestConnection(t *testing.T) *amqp.Connection {
	t.Helper()
	if os.Getenv("RABBITMQ_URL") == "" {
		t.Skip("Skipping test: RABBITMQ_URL environment variable not set. Please start RabbitMQ.")
	}
	url := rabbitMQ.CreateAmqpURL()
	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("Could not connect to RabbitMQ at %s for testing: %v", url, err)
	}
	return conn
}

func receiveMsgWithTimeout[T any](tb testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	tb.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			var zero T
			return zero, false
		}
		return msg, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

func isChanClosed[T any](ch <-chan T) bool {
	select {
	case _, ok := <-ch:
		return !ok
	default:
		return false
	}
}

func TestMQInterfacesWithRabbitMQ(t *testing.T) {
	conn := getTestConnection(t)
	defer conn.Close()

	wrapper, err := rabbitMQ.NewRabbitGroupMessageQueueWrapper(conn)
	if err != nil {
		t.Fatalf("Failed to create RabbitGroupMessageQueueWrapper: %v", err)
	}

	t.Run("WrapperWiring", func(t *testing.T) {
		if wrapper.GetExpenseMessageQueue(mq.ActionCreate) == nil {
			t.Error("expense create queue missing")
		}
		if wrapper.GetExpenseMessageQueue(mq.ActionDelete) != nil {
			t.Error("expense delete queue should not exist")
		}
		if wrapper.GetSettlementMessageQueue(mq.ActionUpdate) == nil {
			t.Error("settlement update queue missing")
		}
		if wrapper.GetGroupMessageQueue(mq.ActionCnt) != nil {
			t.Error("out-of-range action should return nil")
		}
	})

	t.Run("ExpenseLifecycle_SingleSub", func(t *testing.T) {
		q := wrapper.GetExpenseMessageQueue(mq.ActionCreate)
		if q == nil {
			t.Fatal("GetExpenseMessageQueue(ActionCreate) returned nil")
		}
		if q.GetAction() != mq.ActionCreate {
			t.Errorf("GetAction() expected %v, got %v", mq.ActionCreate, q.GetAction())
		}

		groupID := uuid.New()
		subID, ch, err := q.Subscribe(groupID)
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		want := mq.ExpenseMessage{
			GroupID:     groupID,
			ExpenseID:   uuid.New(),
			Description: "hotel night one",
			Amount:      240.50,
			PaidBy:      uuid.New(),
		}
		// Give the consumer a moment to finish binding.
		time.Sleep(200 * time.Millisecond)
		if err := q.Publish(want); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		got, ok := receiveMsgWithTimeout(t, ch, 5*time.Second)
		if !ok {
			t.Fatal("did not receive published expense message")
		}
		if got.ExpenseID != want.ExpenseID || got.Amount != want.Amount {
			t.Errorf("received %+v, want %+v", got, want)
		}

		if err := q.DeSubscribe(subID); err != nil {
			t.Errorf("DeSubscribe failed: %v", err)
		}
		deadline := time.After(3 * time.Second)
		for !isChanClosed(ch) {
			select {
			case <-deadline:
				t.Fatal("subscriber channel not closed after DeSubscribe")
			case <-time.After(50 * time.Millisecond):
			}
		}
		if err := q.DeSubscribe(subID); err == nil {
			t.Error("expected error when de-subscribing twice")
		}
	})

	t.Run("GroupFiltering", func(t *testing.T) {
		q := wrapper.GetMemberMessageQueue(mq.ActionCreate)
		if q == nil {
			t.Fatal("GetMemberMessageQueue(ActionCreate) returned nil")
		}

		groupA := uuid.New()
		groupB := uuid.New()

		subA, chA, err := q.Subscribe(groupA)
		if err != nil {
			t.Fatalf("Subscribe A failed: %v", err)
		}
		defer q.DeSubscribe(subA)

		subB, chB, err := q.Subscribe(groupB)
		if err != nil {
			t.Fatalf("Subscribe B failed: %v", err)
		}
		defer q.DeSubscribe(subB)

		time.Sleep(200 * time.Millisecond)
		msg := mq.MemberMessage{GroupID: groupA, MemberID: uuid.New(), Name: "alice"}
		if err := q.Publish(msg); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		got, ok := receiveMsgWithTimeout(t, chA, 5*time.Second)
		if !ok {
			t.Fatal("subscriber for group A did not receive its message")
		}
		if got.MemberID != msg.MemberID {
			t.Errorf("received %+v, want %+v", got, msg)
		}

		if _, ok := receiveMsgWithTimeout(t, chB, 500*time.Millisecond); ok {
			t.Error("subscriber for group B received a message for group A")
		}
	})

	t.Run("MultipleSubscribersSameGroup", func(t *testing.T) {
		q := wrapper.GetSettlementMessageQueue(mq.ActionUpdate)
		if q == nil {
			t.Fatal("GetSettlementMessageQueue(ActionUpdate) returned nil")
		}

		groupID := uuid.New()
		sub1, ch1, err := q.Subscribe(groupID)
		if err != nil {
			t.Fatalf("Subscribe 1 failed: %v", err)
		}
		defer q.DeSubscribe(sub1)

		sub2, ch2, err := q.Subscribe(groupID)
		if err != nil {
			t.Fatalf("Subscribe 2 failed: %v", err)
		}
		defer q.DeSubscribe(sub2)

		time.Sleep(200 * time.Millisecond)
		msg := mq.SettlementMessage{
			GroupID:   groupID,
			SplitID:   uuid.New(),
			ExpenseID: uuid.New(),
			MemberID:  uuid.New(),
			PaidAt:    time.Now().UTC(),
		}
		if err := q.Publish(msg); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		got1, ok := receiveMsgWithTimeout(t, ch1, 5*time.Second)
		if !ok {
			t.Fatal("subscriber 1 did not receive the settlement")
		}
		got2, ok := receiveMsgWithTimeout(t, ch2, 5*time.Second)
		if !ok {
			t.Fatal("subscriber 2 did not receive the settlement")
		}
		if got1.SplitID != msg.SplitID || got2.SplitID != msg.SplitID {
			t.Errorf("fan-out mismatch: got1=%+v got2=%+v want SplitID %s", got1, got2, msg.SplitID)
		}
	})
}
