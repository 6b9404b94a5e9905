package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/presence/core/event"
	"github.com/edusuite/presence/core/identity"
)

func Test_eventsApi_eventsSubscribe(t *testing.T) {
	ta := initApp(t)

	srv := httptest.NewServer(ta.app)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events"

	attendeeJWT := getToken(t, "att-01", string(identity.RoleAttendee))
	authHeader := http.Header{"Authorization": {"Bearer " + attendeeJWT}}

	t.Run("no auth", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?topic=session:s1", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("topic required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, authHeader)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("stream", func(t *testing.T) {
		topic := event.SessionTopic("s1")
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?topic="+topic, authHeader)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		// subscription is registered during the upgrade, before Dial returns
		ta.bus.Publish(topic, event.TypeAttendanceMarked, map[string]interface{}{"attendee_id": "att-01"})

		var evt event.Event
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, topic, evt.Topic)
		assert.Equal(t, event.TypeAttendanceMarked, evt.Type)
	})
}
