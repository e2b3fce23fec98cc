package realtime

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableserve-backend/internal/notify"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func attachClient(t *testing.T, hub *Hub, buffer int, rooms ...string) *Client {
	t.Helper()
	c := newClient(hub, nil, auth.Identity{SubjectType: enums.SubjectCustomer, SubjectID: uuid.New()}, config.RealtimeConfig{SendBuffer: buffer}, nil)
	hub.register(c)
	for _, room := range rooms {
		require.True(t, hub.join(c, room))
	}
	return c
}

func gatheredValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			require.NotEmpty(t, family.GetMetric())
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestSendNotificationReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	restaurantRoom := notify.RestaurantRoom(uuid.New())
	member := attachClient(t, hub, 4, restaurantRoom)
	outsider := attachClient(t, hub, 4, notify.RestaurantRoom(uuid.New()))

	hub.SendNotification(notify.EventNewOrder, map[string]string{"orderNo": "ORD1"}, restaurantRoom)

	require.Len(t, member.send, 1)
	assert.Empty(t, outsider.send)

	var frame Frame
	require.NoError(t, json.Unmarshal(<-member.send, &frame))
	assert.Equal(t, notify.EventNewOrder, frame.Event)
	assert.JSONEq(t, `{"orderNo":"ORD1"}`, string(frame.Data))
}

func TestSendNotificationDeliversOncePerClient(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	a, b := notify.RestaurantRoom(uuid.New()), notify.CustomerRoom(uuid.New())
	c := attachClient(t, hub, 4, a, b)

	hub.SendNotification(notify.EventOrderStatusUpdated, struct{}{}, a, b)

	assert.Len(t, c.send, 1)
}

func TestSlowClientIsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := NewHub(testLogger(), metrics.NewRealtimeMetrics(reg))
	room := notify.RestaurantRoom(uuid.New())
	slow := attachClient(t, hub, 1, room)
	fast := attachClient(t, hub, 8, room)

	hub.SendNotification(notify.EventNewOrder, 1, room)
	hub.SendNotification(notify.EventNewOrder, 2, room)

	assert.Equal(t, 1, hub.RoomSize(room))
	assert.Len(t, fast.send, 2)

	// buffered message still drains, then the channel reports closed
	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)

	assert.Equal(t, 1.0, gatheredValue(t, reg, "tableserve_ws_slow_clients_dropped_total"))
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	room := notify.CustomerRoom(uuid.New())
	c := attachClient(t, hub, 1, room)

	hub.unregister(c)
	hub.unregister(c)

	assert.Equal(t, 0, hub.RoomSize(room))
	assert.False(t, hub.join(c, room))
	assert.NotPanics(t, func() { hub.SendNotification(notify.EventNewOrder, nil, room) })
}

func TestNilHubIsSafe(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.SendNotification(notify.EventNewOrder, nil, "restaurant_x") })
}
