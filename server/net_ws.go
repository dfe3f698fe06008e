package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// ClientConn 宿主连接：负责把效果写回宿主，实现 Effects
type ClientConn struct {
	ws *websocket.Conn

	mu     deadlock.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn, queue int) *ClientConn {
	if queue <= 0 {
		queue = 256
	}
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, queue),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		Log.Warnf("ws %s: send queue full, dropping %d bytes", c.ws.RemoteAddr(), len(b))
	}
}

// Close 关闭底层连接与发送队列（可重复调用）
func (c *ClientConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
}

func (c *ClientConn) enqueueJSON(v OutputMessage) {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorf("ws: marshal %s: %v", v.Type, err)
		return
	}
	c.Enqueue(b)
}

func (c *ClientConn) SendMessage(player PlayerID, msg Message) {
	c.enqueueJSON(OutputMessage{Type: "message", Player: player.String(), Message: &msg})
}

func (c *ClientConn) ApplyDamage(player PlayerID, cause string, amount float32) {
	c.enqueueJSON(OutputMessage{Type: "damage", Player: player.String(), Cause: cause, Amount: amount})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 读取宿主事件，投递到会话事件循环
func (c *ClientConn) readPump(s *Session) {
	defer c.Close()
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(readTimeout)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Warnf("ws %s: read: %v", c.ws.RemoteAddr(), err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))

		ev, err := DecodeInput(payload)
		if err != nil {
			Log.Debugf("ws %s: bad input: %v", c.ws.RemoteAddr(), err)
			c.enqueueJSON(OutputMessage{Type: "error", Error: err.Error()})
			continue
		}
		if err := s.Submit(ev, c); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 宿主为服务端进程，不是浏览器
		return true
	},
}

// NewWSHandler 宿主接入：/ws?server=<id>
func NewWSHandler(m *SessionManager, cfg BridgeConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := r.URL.Query().Get("server")
		if serverID == "" {
			serverID = DefaultServerID
		}
		if !ValidServerID(serverID) {
			http.Error(w, "invalid server id", http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnf("upgrade error: %v", err)
			return
		}

		s := m.GetOrCreate(serverID)
		client := NewClientConn(ws, cfg.SendQueue)
		Log.Infof("host %s attached to session %s", ws.RemoteAddr(), serverID)

		go client.writePump()
		go client.readPump(s)
	}
}
