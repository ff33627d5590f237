package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/notify"
)

type recordingHub struct {
	pongs      []int64
	stats      []int64
	errors     []string
	broadcasts []notify.BroadcastData
}

func (h *recordingHub) Subscribe(int64, entity.Role, notify.Subscriber) {}

func (h *recordingHub) Unsubscribe(int64, notify.Subscriber) {}

func (h *recordingHub) Pong(userID int64) {
	h.pongs = append(h.pongs, userID)
}

func (h *recordingHub) SendStats(userID int64) {
	h.stats = append(h.stats, userID)
}

func (h *recordingHub) SendError(_ int64, message string) {
	h.errors = append(h.errors, message)
}

func (h *recordingHub) Broadcast(from, message string) {
	h.broadcasts = append(h.broadcasts, notify.BroadcastData{From: from, Message: message})
}

func TestDispatch(t *testing.T) {
	hub := &recordingHub{}
	h := &Handler{hub: hub, logger: zap.NewNop()}
	waiter := &entity.User{ID: 7, Username: "w", Role: entity.RoleWaiter}
	admin := &entity.User{ID: 1, Username: "boss", FullName: "The Boss", Role: entity.RoleAdmin}

	h.dispatch(waiter, []byte(`{"type":"ping"}`))
	h.dispatch(waiter, []byte(`{"type":"get_stats"}`))
	h.dispatch(waiter, []byte(`{"type":"broadcast","message":"hi"}`))
	h.dispatch(admin, []byte(`{"type":"broadcast","message":"  kitchen closes at 23:00 "}`))
	h.dispatch(admin, []byte(`{"type":"broadcast","message":"   "}`))
	h.dispatch(waiter, []byte(`{"type":"dance"}`))
	h.dispatch(waiter, []byte(`not json`))

	assert.Equal(t, []int64{7}, hub.pongs)
	assert.Equal(t, []int64{7}, hub.stats)
	require.Len(t, hub.broadcasts, 1)
	assert.Equal(t, notify.BroadcastData{From: "The Boss", Message: "kitchen closes at 23:00"}, hub.broadcasts[0])
	assert.Equal(t, []string{
		"only admins can broadcast",
		"broadcast message is empty",
		"unknown message type",
		"invalid message",
	}, hub.errors)
}

func TestSubscriberBuffersAndCloses(t *testing.T) {
	sub := newSubscriber()
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, sub.Send(notify.Event{Type: notify.EventPong}))
	}
	assert.ErrorIs(t, sub.Send(notify.Event{Type: notify.EventPong}), errSlow)

	assert.False(t, sub.Closed())
	sub.Close()
	sub.Close()
	assert.True(t, sub.Closed())
	assert.ErrorIs(t, sub.Send(notify.Event{Type: notify.EventPong}), errClosed)

	select {
	case <-sub.done:
	default:
		t.Fatal("done channel not closed")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := notify.NewHub(zap.NewNop())
	sub := newSubscriber()
	hub.Subscribe(3, entity.RoleKitchen, sub)

	for i := 0; i < sendBuffer+1; i++ {
		hub.Broadcast("admin", "flood")
	}
	assert.True(t, sub.Closed())
	assert.Equal(t, 0, hub.Stats().Total)
}
