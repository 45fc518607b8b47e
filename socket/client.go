package socket

import (
	usermodel "articlehub/internal/user/model"
	"articlehub/pkg/logger"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
	// Subscribers only listen; anything larger than a close frame is noise.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware in front of the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket subscriber of a room.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	UUID     string
	UserUUID string
	Send     chan []byte
}

// ID identifies the client in logs.
func (c *Client) ID() string {
	if c.UserUUID == "" {
		return "anonymous@" + c.UUID
	}
	return c.UserUUID + "@" + c.UUID
}

func visible(viewer *usermodel.User, owner string, privacy bool) bool {
	return !privacy || viewer.CanTouch(usermodel.FeatureUserManage, usermodel.FeatureUserMine, owner)
}

// ServeWs subscribes the caller to change events of the article or document
// named by the uuid query parameter. Private articles, and pages of private
// documents, are only visible to their owner and to managers. viewer may be nil.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, viewer *usermodel.User) {
	uuid := r.URL.Query().Get("uuid")
	if uuid == "" {
		http.Error(w, "uuid is required", http.StatusBadRequest)
		return
	}

	var ownerUUID string
	var privacy bool
	var docOwner sql.NullString
	var docPrivacy sql.NullBool
	err := hub.db.QueryRowContext(r.Context(), `
		SELECT a.user_uuid, a.privacy, d.user_uuid, d.privacy
		FROM articles a LEFT JOIN articles d ON d.uuid = a.document_uuid
		WHERE a.uuid = $1`, uuid).Scan(&ownerUUID, &privacy, &docOwner, &docPrivacy)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Warnf("Connection rejected: article %s not found", uuid)
		http.Error(w, "article not found", http.StatusNotFound)
		return
	} else if err != nil {
		logger.Sugar.Errorf("Database error checking article %s: %v", uuid, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !visible(viewer, ownerUUID, privacy) || (docOwner.Valid && !visible(viewer, docOwner.String, docPrivacy.Bool)) {
		http.Error(w, "article is private", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:  hub,
		Conn: conn,
		UUID: uuid,
		Send: make(chan []byte, sendBuffer),
	}
	if viewer != nil {
		client.UserUUID = viewer.UUID
	}

	select {
	case client.Hub.Register <- client:
	case <-client.Hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so close and pong frames are processed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
