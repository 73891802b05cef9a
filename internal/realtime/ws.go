package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/store"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// envelope is the wire format exchanged with the relay. Every frame carries
// the room and the sender's participant key so receivers can exclude their
// own typing echoes.
type envelope struct {
	Type      string          `json:"type"` // join, track, typing, message_insert, document_update, presence
	Room      string          `json:"room"`
	SenderKey string          `json:"sender_key,omitempty"`
	Message   *wireMessage    `json:"message,omitempty"`
	Document  *wireDocument   `json:"document,omitempty"`
	Typing    *Typing         `json:"typing,omitempty"`
	Presence  map[string]Meta `json:"presence,omitempty"`
	Meta      *Meta           `json:"meta,omitempty"`
}

type wireMessage struct {
	MsgID            string            `json:"msg_id"`
	Content          string            `json:"content"`
	OriginalLanguage string            `json:"original_language"`
	Translations     map[string]string `json:"translations"`
	UserName         string            `json:"user_name"`
	CreatedAt        int64             `json:"created_at"`
}

type wireDocument struct {
	Content      string            `json:"content"`
	Translations map[string]string `json:"translations"`
	UpdatedAt    int64             `json:"updated_at"`
}

// WSChannel is a room channel speaking the envelope protocol to a relay
// over a websocket. It publishes channel.connected / channel.disconnected
// bus events so the daemon can drive the connectivity state machine.
type WSChannel struct {
	conn   *websocket.Conn
	room   string
	key    string
	fanout *fanout
	bus    *bus.Bus
	logger *zap.Logger

	sendCh    chan envelope
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay and joins the room.
func Dial(ctx context.Context, relayURL, room, key string, b *bus.Bus, logger *zap.Logger) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &WSChannel{
		conn:   conn,
		room:   room,
		key:    key,
		fanout: newFanout(),
		bus:    b,
		logger: logger,
		sendCh: make(chan envelope, 64),
		done:   make(chan struct{}),
	}

	if err := conn.WriteJSON(envelope{Type: "join", Room: room, SenderKey: key}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}

	go c.readPump()
	go c.writePump()

	if b != nil {
		b.Publish(bus.Event{Kind: bus.KindChannelConnected, Timestamp: time.Now()})
	}
	return c, nil
}

func (c *WSChannel) Subscribe(buf int) (<-chan Event, func()) {
	return c.fanout.subscribe(buf)
}

func (c *WSChannel) PublishMessage(ctx context.Context, m *store.Message) error {
	return c.send(ctx, envelope{Type: "message_insert", Message: toWireMessage(m)})
}

func (c *WSChannel) PublishDocument(ctx context.Context, d *store.Document) error {
	return c.send(ctx, envelope{Type: "document_update", Document: &wireDocument{
		Content:      d.Content,
		Translations: d.Translations,
		UpdatedAt:    d.UpdatedAt,
	}})
}

func (c *WSChannel) SendTyping(ctx context.Context, content string) error {
	return c.send(ctx, envelope{Type: "typing", Typing: &Typing{Content: content}})
}

func (c *WSChannel) Track(ctx context.Context, meta Meta) error {
	return c.send(ctx, envelope{Type: "track", Meta: &meta})
}

func (c *WSChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

func (c *WSChannel) send(ctx context.Context, env envelope) error {
	env.Room = c.room
	env.SenderKey = c.key
	select {
	case c.sendCh <- env:
		return nil
	case <-c.done:
		return fmt.Errorf("channel closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WSChannel) readPump() {
	defer c.disconnected()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				if c.logger != nil {
					c.logger.Warn("relay read failed", zap.Error(err))
				}
			}
			return
		}
		c.dispatch(env)
	}
}

func (c *WSChannel) dispatch(env envelope) {
	switch env.Type {
	case "message_insert":
		if env.Message == nil {
			return
		}
		c.fanout.emit(Event{Kind: EventMessageInsert, Message: fromWireMessage(env.Message)})
	case "document_update":
		if env.Document == nil {
			return
		}
		c.fanout.emit(Event{Kind: EventDocumentUpdate, Document: &store.Document{
			ID:           store.DocumentID,
			Content:      env.Document.Content,
			Translations: env.Document.Translations,
			UpdatedAt:    env.Document.UpdatedAt,
		}})
	case "typing":
		// broadcast self=false: drop our own echo by sender key.
		if env.Typing == nil || env.SenderKey == c.key {
			return
		}
		c.fanout.emit(Event{Kind: EventTyping, Typing: env.Typing})
	case "presence":
		c.fanout.emit(Event{Kind: EventPresence, Presence: env.Presence})
	}
}

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				if c.logger != nil {
					c.logger.Warn("relay write failed", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSChannel) disconnected() {
	select {
	case <-c.done:
		return // explicit Close, not an outage
	default:
	}
	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: bus.KindChannelDisconnected, Timestamp: time.Now()})
	}
}

func toWireMessage(m *store.Message) *wireMessage {
	return &wireMessage{
		MsgID:            m.MsgID,
		Content:          m.Content,
		OriginalLanguage: m.OriginalLanguage,
		Translations:     m.Translations,
		UserName:         m.UserName,
		CreatedAt:        m.CreatedAt,
	}
}

func fromWireMessage(w *wireMessage) *store.Message {
	return &store.Message{
		MsgID:            w.MsgID,
		Content:          w.Content,
		OriginalLanguage: w.OriginalLanguage,
		Translations:     w.Translations,
		UserName:         w.UserName,
		Status:           store.StatusConfirmed,
		CreatedAt:        w.CreatedAt,
	}
}
