package service

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *GenerationHub, userID uint) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestGenerationHub_NotifyAndPing(t *testing.T) {
	hub := NewGenerationHub(nil)
	go hub.Run()

	conn := dialHub(t, hub, 7)
	other := dialHub(t, hub, 8)
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(7) == 1 && hub.ConnectionCount(8) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Notify(7, ProgressEvent{Step: KindScript, Status: StepCompleted, Detail: "4 panels"})
	msg := readMessage(t, conn)
	assert.Equal(t, EventGenerationProgress, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, KindScript, data["step"])
	assert.Equal(t, StepCompleted, data["status"])

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "PING"}))
	assert.Equal(t, EventPong, readMessage(t, conn).Type)

	// 其他用户收不到该事件
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func requireClosedByServer(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should be closed by the hub, not time out")
	}
}

func TestGenerationHub_StopReleasesConnections(t *testing.T) {
	hub := NewGenerationHub(nil)
	go hub.Run()

	conn := dialHub(t, hub, 7)
	require.Eventually(t, func() bool { return hub.ConnectionCount(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Stop()
	requireClosedByServer(t, conn)

	// 停止后的新连接直接关闭，不会卡在注册上
	late := dialHub(t, hub, 9)
	requireClosedByServer(t, late)
	assert.Equal(t, 0, hub.ConnectionCount(9))
}
