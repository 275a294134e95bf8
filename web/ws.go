package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"smartpay/mq/mq"
)

const wsPingInterval = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// allow all origins for WebSocket connections
		// should only in dev
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// groupEvent is one frame of the live event stream.
type groupEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// streamQueue pipes one queue's messages for a group into the shared
// event channel until the context is cancelled.
func streamQueue[M mq.TopicProvider](ctx context.Context, groupID uuid.UUID, queue mq.MessageQueue[M], eventType string, events chan<- groupEvent) {
	if queue == nil {
		return
	}
	out := make(chan groupEvent, 4)
	mq.SubscribeProcessor(groupID, ctx, queue, func(msg M) (groupEvent, bool, error) {
		return groupEvent{Type: eventType, Payload: msg}, false, nil
	}, out)
	go func() {
		for ev := range out {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StreamGroupEvents upgrades the connection and forwards every ledger
// event of one group as JSON frames.
func (h *Handler) StreamGroupEvents(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.GetGroup(groupID); err != nil {
		respondError(c, err)
		return
	}
	queues := h.svc.Queues()
	if queues == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event streaming is not enabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket for group %s: %v", groupID, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan groupEvent, 16)
	streamQueue(ctx, groupID, queues.GetExpenseMessageQueue(mq.ActionCreate), "expense.created", events)
	streamQueue(ctx, groupID, queues.GetMemberMessageQueue(mq.ActionCreate), "member.joined", events)
	streamQueue(ctx, groupID, queues.GetSettlementMessageQueue(mq.ActionUpdate), "split.settled", events)
	streamQueue(ctx, groupID, queues.GetGroupMessageQueue(mq.ActionUpdate), "group.updated", events)
	streamQueue(ctx, groupID, queues.GetGroupMessageQueue(mq.ActionDelete), "group.deleted", events)

	// Reader loop only exists to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsPingInterval))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsPingInterval))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
