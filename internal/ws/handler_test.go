package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/root"
	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/GriffinCanCode/plugstore/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, forward plugin.ForwardFunc) (*httptest.Server, *plugin.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r, err := root.New(root.Options{Dir: t.TempDir(), ShutdownTimeout: time.Second})
	require.NoError(t, err)
	manager := plugin.NewManager(r, plugin.ManagerOptions{Forward: forward})

	router := gin.New()
	router.GET("/plugins/connect", NewHandler(manager, nil).HandleConnection)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.ShutdownAll(ctx, 100*time.Millisecond)
		srv.Close()
		_ = r.Close(ctx)
	})
	return srv, manager
}

func connectURL(srv *httptest.Server, q url.Values) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/plugins/connect?" + q.Encode()
}

func dial(t *testing.T, srv *httptest.Server, q url.Values) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(connectURL(srv, q), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, sonic.Unmarshal(raw, &env))
	return env
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, env Envelope) {
	t.Helper()
	raw, err := sonic.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func pairQuery(mode string) url.Values {
	return url.Values{
		"origin":           {"https://example1.com"},
		"top_level_origin": {"https://example2.com"},
		"mode":             {mode},
	}
}

func TestPluginOverWebSocket(t *testing.T) {
	messages := make(chan string, 4)
	srv, manager := newServer(t, func(h *plugin.Host, ev plugin.Event) {
		if m, ok := ev.(plugin.SessionMessage); ok {
			messages <- m.Payload
		}
	})

	conn := dial(t, srv, pairQuery("persistent"))

	hello := readEnvelope(t, conn)
	require.Equal(t, TypeHello, hello.Type)
	require.NoError(t, types.NodeID(hello.NodeID).Validate())
	require.True(t, strings.HasPrefix(hello.InstanceID, id.InstancePrefix+"_"))

	writeEnvelope(t, conn, Envelope{Type: TypeStorage, ID: 1, Op: "put", Name: "rec", Data: []byte("payload")})
	reply := readEnvelope(t, conn)
	assert.Equal(t, Envelope{Type: TypeReply, ID: 1, Status: "ok"}, reply)

	writeEnvelope(t, conn, Envelope{Type: TypeStorage, ID: 2, Op: "get", Name: "rec"})
	reply = readEnvelope(t, conn)
	assert.Equal(t, uint64(2), reply.ID)
	assert.Equal(t, []byte("payload"), reply.Data)

	writeEnvelope(t, conn, Envelope{Type: TypeStorage, ID: 3, Op: "get", Name: "missing"})
	assert.Equal(t, "not_found", readEnvelope(t, conn).Status)

	writeEnvelope(t, conn, Envelope{Type: TypeMessage, Payload: "hi"})
	select {
	case got := <-messages:
		assert.Equal(t, "hi", got)
	case <-time.After(5 * time.Second):
		t.Fatal("message not forwarded")
	}

	f, err := manager.Shutdown(id.InstanceID(hello.InstanceID), time.Second)
	require.NoError(t, err)
	assert.Equal(t, TypeShutdown, readEnvelope(t, conn).Type)
	writeEnvelope(t, conn, Envelope{Type: TypeAck})

	outcome, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeClosed, outcome)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestDisconnectTerminatesInstance(t *testing.T) {
	srv, manager := newServer(t, nil)

	conn := dial(t, srv, pairQuery("private"))
	readEnvelope(t, conn)
	require.Equal(t, 1, manager.Count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return manager.Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	// the node takes a new connection
	again := dial(t, srv, pairQuery("private"))
	assert.Equal(t, TypeHello, readEnvelope(t, again).Type)
}

func TestConnectRejectsBadQuery(t *testing.T) {
	srv, _ := newServer(t, nil)

	tests := []url.Values{
		{},
		{"origin": {"bad origin"}},
		{"origin": {"https://example1.com"}, "mode": {"incognito"}},
	}
	for _, q := range tests {
		_, resp, err := websocket.DefaultDialer.Dial(connectURL(srv, q), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"storage","id":7,"op":"delete","name":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, plugin.StorageRequest{ID: 7, Op: plugin.OpDelete, Name: "x"}, ev)

	ev, err = decodeEvent([]byte(`{"type":"ack"}`))
	require.NoError(t, err)
	assert.Equal(t, plugin.ShutdownAck{}, ev)

	raw := []byte(`{"type":"key-status","payload":"usable"}`)
	ev, err = decodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, plugin.Other{Kind: "key-status", Payload: raw}, ev)

	_, err = decodeEvent([]byte(`{}`))
	assert.Error(t, err)
	_, err = decodeEvent([]byte(`not json`))
	assert.Error(t, err)

	big := `{"type":"message","payload":"` + strings.Repeat("x", utils.MaxMessageSize+1) + `"}`
	_, err = decodeEvent([]byte(big))
	assert.Error(t, err)
}

func TestEncodeCommand(t *testing.T) {
	raw, err := encodeCommand(plugin.StorageReply{ID: 3, Status: plugin.StatusOK, Names: []string{"a", "b"}})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, sonic.Unmarshal(raw, &env))
	assert.Equal(t, Envelope{Type: TypeReply, ID: 3, Status: "ok", Names: []string{"a", "b"}}, env)

	_, err = encodeCommand(nil)
	assert.Error(t, err)
}
