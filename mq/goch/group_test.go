package goch

import (
	"context"
	"sync"
	"testing"
	"time"

	"smartpay/mq/mq"

	"github.com/google/uuid"
)

// Helper to receive a message from a channel with a timeout.
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

// Helper to check if a channel is closed (non-blocking).
func isChanClosed[T any](ch <-chan T) bool {
	select {
	case _, ok := <-ch:
		return !ok
	default:
		return false
	}
}

type MockItem struct {
	Value   int
	TopicID uuid.UUID
}

func (item MockItem) GetTopic() uuid.UUID {
	return item.TopicID
}

// --- fanOutQueueCore Tests ---

func TestNewFanOutQueueCore(t *testing.T) {
	t.Parallel()

	core := newFanOutQueueCore[MockItem](4)
	if core == nil {
		t.Fatal("newFanOutQueueCore returned nil")
	}
	defer core.Stop()

	if core.publishChan == nil {
		t.Error("publishChan is nil")
	}
	if cap(core.publishChan) != 4 {
		t.Errorf("expected publishChan capacity 4, got %d", cap(core.publishChan))
	}
	if core.subscribers == nil {
		t.Error("subscribers map is nil")
	}
	if core.quit == nil {
		t.Error("quit channel is nil")
	}
	if core.bufferSize != 4 {
		t.Errorf("expected bufferSize 4, got %d", core.bufferSize)
	}
}

func TestFanOutQueueCore_PublishSubscribe(t *testing.T) {
	t.Parallel()

	core := newFanOutQueueCore[MockItem](4)
	defer core.Stop()

	topic := uuid.New()
	_, ch, err := core.Subscribe(topic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	want := MockItem{Value: 42, TopicID: topic}
	if err := core.Publish(want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok := receiveMsgWithTimeout(t, ch, time.Second)
	if !ok {
		t.Fatal("did not receive published message")
	}
	if got != want {
		t.Errorf("received %+v, want %+v", got, want)
	}
}

func TestFanOutQueueCore_TopicFilter(t *testing.T) {
	t.Parallel()

	core := newFanOutQueueCore[MockItem](4)
	defer core.Stop()

	topicA := uuid.New()
	topicB := uuid.New()

	_, chA, err := core.Subscribe(topicA)
	if err != nil {
		t.Fatalf("Subscribe A failed: %v", err)
	}
	_, chB, err := core.Subscribe(topicB)
	if err != nil {
		t.Fatalf("Subscribe B failed: %v", err)
	}

	if err := core.Publish(MockItem{Value: 1, TopicID: topicA}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok := receiveMsgWithTimeout(t, chA, time.Second)
	if !ok {
		t.Fatal("subscriber on topic A did not receive its message")
	}
	if got.Value != 1 {
		t.Errorf("subscriber A received %+v", got)
	}

	if _, ok := receiveMsgWithTimeout(t, chB, 100*time.Millisecond); ok {
		t.Error("subscriber on topic B received a message for topic A")
	}
}

func TestFanOutQueueCore_MultipleSubscribersSameTopic(t *testing.T) {
	t.Parallel()

	core := newFanOutQueueCore[MockItem](4)
	defer core.Stop()

	topic := uuid.New()
	const subCnt = 3

	channels := make([]<-chan MockItem, 0, subCnt)
	for i := 0; i < subCnt; i++ {
		_, ch, err := core.Subscribe(topic)
		if err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
		channels = append(channels, ch)
	}

	if err := core.Publish(MockItem{Value: 7, TopicID: topic}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch <-chan MockItem) {
			defer wg.Done()
			if _, ok := receiveMsgWithTimeout(t, ch, time.Second); !ok {
				t.Errorf("subscriber %d did not receive the message", i)
			}
		}(i, ch)
	}
	wg.Wait()
}

func TestFanOutQueueCore_DeSubscribe(t *testing.T) {
	t.Parallel()

	core := newFanOutQueueCore[MockItem](4)
	defer core.Stop()

	topic := uuid.New()
	id, ch, err := core.Subscribe(topic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := core.DeSubscribe(id); err != nil {
		t.Fatalf("DeSubscribe failed: %v", err)
	}
	if !isChanClosed(ch) {
		t.Error("subscriber channel should be closed after DeSubscribe")
	}

	if err := core.DeSubscribe(id); err == nil {
		t.Error("expected error when de-subscribing twice")
	}
	if err := core.DeSubscribe(uuid.New()); err == nil {
		t.Error("expected error for unknown subscriber ID")
	}
}

func TestFanOutQueueCore_Stop(t *testing.T) {
	t.Parallel()

	core := newFanOutQueueCore[MockItem](4)

	topic := uuid.New()
	_, ch, err := core.Subscribe(topic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	core.Stop()
	core.Stop() // idempotent

	deadline := time.After(time.Second)
	for {
		if isChanClosed(ch) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("subscriber channel not closed after Stop")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := core.Publish(MockItem{TopicID: topic}); err != ErrQueueStopped {
		t.Errorf("Publish after Stop: got %v, want ErrQueueStopped", err)
	}
	if _, _, err := core.Subscribe(topic); err != ErrQueueStopped {
		t.Errorf("Subscribe after Stop: got %v, want ErrQueueStopped", err)
	}
}

func TestFanOutQueueCore_PublishFull(t *testing.T) {
	t.Parallel()

	// No subscribers, zero buffer: nothing drains publishChan before
	// the dispatch loop picks messages up one at a time.
	core := newFanOutQueueCore[MockItem](0)
	defer core.Stop()

	topic := uuid.New()
	sawFull := false
	for i := 0; i < 100; i++ {
		if err := core.Publish(MockItem{Value: i, TopicID: topic}); err == ErrQueueFull {
			sawFull = true
			break
		}
	}
	if !sawFull {
		t.Error("expected ErrQueueFull when flooding an unbuffered queue")
	}
}

// --- ChannelMessageQueue Tests ---

func TestChannelMessageQueue_GetAction(t *testing.T) {
	t.Parallel()

	q := NewChannelMessageQueue[mq.ExpenseMessage](mq.ActionCreate, 2)
	defer q.Close()

	if q.GetAction() != mq.ActionCreate {
		t.Errorf("GetAction: got %v, want %v", q.GetAction(), mq.ActionCreate)
	}
}

func TestChannelMessageQueue_RoundTrip(t *testing.T) {
	t.Parallel()

	q := NewChannelMessageQueue[mq.SettlementMessage](mq.ActionUpdate, 2)
	defer q.Close()

	groupID := uuid.New()
	_, ch, err := q.Subscribe(groupID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	want := mq.SettlementMessage{
		GroupID:   groupID,
		SplitID:   uuid.New(),
		ExpenseID: uuid.New(),
		MemberID:  uuid.New(),
		PaidAt:    time.Now().UTC(),
	}
	if err := q.Publish(want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok := receiveMsgWithTimeout(t, ch, time.Second)
	if !ok {
		t.Fatal("did not receive settlement message")
	}
	if got.SplitID != want.SplitID || got.MemberID != want.MemberID {
		t.Errorf("received %+v, want %+v", got, want)
	}
}

// --- Wrapper Tests ---

func TestNewGoChanGroupMessageQueueWrapper(t *testing.T) {
	t.Parallel()

	wrapper := NewGoChanGroupMessageQueueWrapper()

	if wrapper.GetExpenseMessageQueue(mq.ActionCreate) == nil {
		t.Error("expense create queue missing")
	}
	if wrapper.GetExpenseMessageQueue(mq.ActionDelete) != nil {
		t.Error("expense delete queue should not exist")
	}
	if wrapper.GetMemberMessageQueue(mq.ActionCreate) == nil {
		t.Error("member create queue missing")
	}
	if wrapper.GetSettlementMessageQueue(mq.ActionUpdate) == nil {
		t.Error("settlement update queue missing")
	}
	if wrapper.GetGroupMessageQueue(mq.ActionUpdate) == nil {
		t.Error("group update queue missing")
	}
	if wrapper.GetGroupMessageQueue(mq.ActionDelete) == nil {
		t.Error("group delete queue missing")
	}
	if wrapper.GetGroupMessageQueue(mq.ActionCnt) != nil {
		t.Error("out-of-range action should return nil")
	}
}

// --- SubscribeProcessor Tests ---

func TestSubscribeProcessor(t *testing.T) {
	t.Parallel()

	q := NewChannelMessageQueue[mq.ExpenseMessage](mq.ActionCreate, 4)
	defer q.Close()

	groupID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 4)
	mq.SubscribeProcessor(groupID, ctx, q,
		func(msg mq.ExpenseMessage) (string, bool, error) {
			if msg.Amount <= 0 {
				return "", true, nil
			}
			return msg.Description, false, nil
		}, out)

	// Give the processor a moment to register its subscription.
	time.Sleep(50 * time.Millisecond)

	publish := func(desc string, amount float64) {
		t.Helper()
		err := q.Publish(mq.ExpenseMessage{
			GroupID:     groupID,
			ExpenseID:   uuid.New(),
			Description: desc,
			Amount:      amount,
		})
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	publish("skipped", 0)
	publish("dinner", 120)

	got, ok := receiveMsgWithTimeout(t, out, time.Second)
	if !ok {
		t.Fatal("did not receive transformed output")
	}
	if got != "dinner" {
		t.Errorf("transformed output: got %q, want %q", got, "dinner")
	}

	cancel()
	deadline := time.After(time.Second)
	for {
		if isChanClosed(out) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("output stream not closed after context cancel")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
