package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	qterrors "github.com/sanusi-mayowa/QuickTalk-sub000/internal/errors"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/retry"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// frame is the wire envelope exchanged with the realtime backend.
type frame struct {
	Op        string      `json:"op"` // subscribe, unsubscribe, publish, event
	Topic     string      `json:"topic"`
	EventType EventType   `json:"event_type,omitempty"`
	Doc       gateway.Doc `json:"doc,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

type wsSub struct {
	topic   string
	onEvent func(Event)
}

// WebSocketTransport implements Transport over a single websocket connection
// to the realtime backend. It reconnects with backoff and re-issues topic
// subscriptions after each reconnect. Connectivity edges are reported through
// an optional listener so the network monitor can observe them.
type WebSocketTransport struct {
	url       string
	authToken string
	logger    *logrus.Logger
	backoff   *retry.Backoff

	mu       sync.RWMutex
	conn     *websocket.Conn
	subs     map[int]*wsSub
	next     int
	onOnline func(bool)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebSocketTransport creates a transport for the given endpoint. Call
// Start to connect.
func NewWebSocketTransport(url, authToken string, logger *logrus.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		url:       url,
		authToken: authToken,
		logger:    logger,
		backoff:   retry.NewBackoff(retry.DefaultBackoffConfig()),
		subs:      make(map[int]*wsSub),
	}
}

// SetConnectivityListener registers a callback fired on connect/disconnect.
func (t *WebSocketTransport) SetConnectivityListener(fn func(online bool)) {
	t.mu.Lock()
	t.onOnline = fn
	t.mu.Unlock()
}

// Start connects and keeps the connection alive until ctx is cancelled.
func (t *WebSocketTransport) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.connectLoop(runCtx)
}

// Stop tears the connection down and waits for the read loop to exit.
func (t *WebSocketTransport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

func (t *WebSocketTransport) connectLoop(ctx context.Context) {
	defer t.wg.Done()

	attempt := 1
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := t.dial(ctx)
		if err != nil {
			t.logger.WithError(err).WithField("attempt", attempt).Warn("Realtime connect failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.backoff.GetNextDelay(attempt)):
			}
			attempt++
			continue
		}

		attempt = 1
		t.setConn(conn)
		t.notifyOnline(true)
		t.resubscribe(ctx)

		t.readLoop(ctx, conn)

		t.setConn(nil)
		t.notifyOnline(false)
	}
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{}
	if t.authToken != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + t.authToken}}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, t.url, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}
	return conn, nil
}

func (t *WebSocketTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() == nil {
				t.logger.WithError(err).Warn("Realtime read failed, reconnecting")
			}
			_ = conn.Close(websocket.StatusInternalError, "read failure")
			return
		}
		if f.Op != "event" {
			continue
		}
		t.dispatch(Event{Type: f.EventType, Topic: f.Topic, Doc: f.Doc, Timestamp: f.Timestamp})
	}
}

func (t *WebSocketTransport) dispatch(evt Event) {
	t.mu.RLock()
	handlers := make([]func(Event), 0, len(t.subs))
	for _, sub := range t.subs {
		if sub.topic == evt.Topic {
			handlers = append(handlers, sub.onEvent)
		}
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// Subscribe registers a topic handler. The subscription survives reconnects;
// events arriving after the returned Unsubscribe runs are dropped.
func (t *WebSocketTransport) Subscribe(topic string, onEvent func(Event)) (Unsubscribe, error) {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = &wsSub{topic: topic, onEvent: onEvent}
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := wsjson.Write(ctx, conn, frame{Op: "subscribe", Topic: topic}); err != nil {
			t.logger.WithError(err).WithField("topic", topic).Warn("Subscribe frame failed, will retry on reconnect")
		}
	}

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		conn := t.conn
		stillWanted := false
		for _, sub := range t.subs {
			if sub.topic == topic {
				stillWanted = true
				break
			}
		}
		t.mu.Unlock()

		if conn != nil && !stillWanted {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := wsjson.Write(ctx, conn, frame{Op: "unsubscribe", Topic: topic}); err != nil {
				t.logger.WithError(err).WithField("topic", topic).Debug("Unsubscribe frame failed")
			}
		}
	}, nil
}

// Publish sends one event frame. Failures surface as transport errors; the
// caller decides whether they matter.
func (t *WebSocketTransport) Publish(ctx context.Context, topic string, eventType EventType, doc gateway.Doc) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return qterrors.NewTransportError(topic, fmt.Errorf("not connected"))
	}

	f := frame{Op: "publish", Topic: topic, EventType: eventType, Doc: doc, Timestamp: time.Now().UTC()}
	if err := wsjson.Write(ctx, conn, f); err != nil {
		return qterrors.NewTransportError(topic, err)
	}
	return nil
}

func (t *WebSocketTransport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
}

func (t *WebSocketTransport) notifyOnline(online bool) {
	t.mu.RLock()
	fn := t.onOnline
	t.mu.RUnlock()
	if fn != nil {
		fn(online)
	}
}

func (t *WebSocketTransport) resubscribe(ctx context.Context) {
	t.mu.RLock()
	topics := make(map[string]struct{})
	for _, sub := range t.subs {
		topics[sub.topic] = struct{}{}
	}
	conn := t.conn
	t.mu.RUnlock()

	if conn == nil {
		return
	}
	for topic := range topics {
		if err := wsjson.Write(ctx, conn, frame{Op: "subscribe", Topic: topic}); err != nil {
			t.logger.WithError(err).WithField("topic", topic).Warn("Resubscribe failed")
			return
		}
	}
}
