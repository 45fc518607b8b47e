package socket

import (
	usermodel "articlehub/internal/user/model"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, string) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var viewer *usermodel.User
		if id := r.URL.Query().Get("user_id"); id != "" {
			viewer = &usermodel.User{UUID: id, Role: usermodel.RoleUser}
		}
		ServeWs(hub, w, r, viewer)
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

var accessColumns = []string{"user_uuid", "privacy", "doc_user_uuid", "doc_privacy"}

func expectArticle(mock sqlmock.Sqlmock, uuid, owner string, privacy bool) {
	mock.ExpectQuery("SELECT a.user_uuid, a.privacy, d.user_uuid, d.privacy").
		WithArgs(uuid).
		WillReturnRows(sqlmock.NewRows(accessColumns).AddRow(owner, privacy, nil, nil))
}

func expectPage(mock sqlmock.Sqlmock, uuid, owner string, privacy bool, docOwner string, docPrivacy bool) {
	mock.ExpectQuery("SELECT a.user_uuid, a.privacy, d.user_uuid, d.privacy").
		WithArgs(uuid).
		WillReturnRows(sqlmock.NewRows(accessColumns).AddRow(owner, privacy, docOwner, docPrivacy))
}

func TestHubIntegration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(db)
	go hub.Run(ctx)

	_, wsURL := newTestServer(t, hub)

	// Client 1 joins and sees itself as the only viewer.
	expectArticle(mock, "a1", "owner", false)
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?uuid=a1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	joined := readMessage(t, conn1)
	assert.Equal(t, PresenceUpdateType, joined.Type)
	assert.Equal(t, "a1", joined.UUID)
	assert.JSONEq(t, `{"viewers":1}`, string(joined.Payload))

	// Client 2 joins the same room; both learn about it.
	expectArticle(mock, "a1", "owner", false)
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?uuid=a1&user_id=u2", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()

	assert.JSONEq(t, `{"viewers":2}`, string(readMessage(t, conn1).Payload))
	assert.JSONEq(t, `{"viewers":2}`, string(readMessage(t, conn2).Payload))

	// A published event reaches every viewer of the room.
	hub.Publish(AgreeChangedType, "a1", map[string]int64{"agree": 3})
	for _, conn := range []*websocket.Conn{conn1, conn2} {
		msg := readMessage(t, conn)
		assert.Equal(t, AgreeChangedType, msg.Type)
		assert.JSONEq(t, `{"agree":3}`, string(msg.Payload))
	}

	// Client 2 leaves; client 1 is told.
	conn2.Close()
	left := readMessage(t, conn1)
	assert.Equal(t, PresenceUpdateType, left.Type)
	assert.JSONEq(t, `{"viewers":1}`, string(left.Payload))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServeWsRejects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(db)
	go hub.Run(ctx)

	server, _ := newTestServer(t, hub)

	resp, err := http.Get(server.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	mock.ExpectQuery("SELECT a.user_uuid, a.privacy").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(accessColumns))
	resp, err = http.Get(server.URL + "/ws?uuid=missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	expectArticle(mock, "secret", "owner", true)
	resp, err = http.Get(server.URL + "/ws?uuid=secret&user_id=stranger")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	expectPage(mock, "page", "owner", false, "owner", true)
	resp, err = http.Get(server.URL + "/ws?uuid=page")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "public page of a private document")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrivateArticleOwnerCanSubscribe(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(db)
	go hub.Run(ctx)

	_, wsURL := newTestServer(t, hub)

	expectArticle(mock, "secret", "owner", true)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?uuid=secret&user_id=owner", nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, PresenceUpdateType, msg.Type)
	assert.Eventually(t, func() bool { return hub.Viewers("secret") == 1 }, time.Second, 10*time.Millisecond)

	expectPage(mock, "page", "owner", false, "owner", true)
	pageConn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?uuid=page&user_id=owner", nil)
	require.NoError(t, err)
	defer pageConn.Close()
	assert.Equal(t, PresenceUpdateType, readMessage(t, pageConn).Type)
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish(IndexChangedType, "doc", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, hub.Broadcast, broadcastBuffer)
}
