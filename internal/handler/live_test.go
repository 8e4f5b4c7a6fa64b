package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/jigtrack/internal/event"
)

func TestLive_PushesChangeNotice(t *testing.T) {
	live := NewLive(nil)
	srv := httptest.NewServer(live)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return live.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	evt := event.NewJigDeleted("admin", event.JigDeletedPayload{JigID: 7, Name: "alpha"})
	require.NoError(t, live.HandleEvent(ctx, evt))

	var msg LiveMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "changed", msg.Type)
	assert.Equal(t, "jig_deleted", msg.EventType)
	assert.Equal(t, int64(7), msg.JigID)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return live.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
