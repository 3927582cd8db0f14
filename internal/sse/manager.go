package sse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	queueSize    = 256
	clientBuffer = 32
	backlogSize  = 64
)

// ErrClosed is returned by Connect once the manager has shut down.
var ErrClosed = errors.New("sse: manager closed")

// Delivery is an event stamped with its position in the stream.
// Heartbeats carry Seq 0 and are never replayed.
type Delivery struct {
	Event Event
	Seq   uint64
}

// Subscription selects what a tab receives.
type Subscription struct {
	// Topics filters on the part of the event type before the dot
	// ("history", "schedule", "records", "workspace"). Empty means everything.
	Topics []string
	// LastSeq is the last position the tab saw. Buffered events after it are replayed.
	LastSeq uint64
}

func (s Subscription) wants(t EventType) bool {
	if t == EventHeartbeat || len(s.Topics) == 0 {
		return true
	}
	topic, _, _ := strings.Cut(string(t), ".")
	return slices.Contains(s.Topics, topic)
}

// Client is one open event stream.
type Client struct {
	ConnectedAt time.Time
	ID          string
	// Resync is set when the tab reconnected after events it never saw were
	// evicted (or the server restarted). It should reload its lists.
	Resync bool

	out       chan Delivery
	done      chan struct{}
	sub       Subscription
	closeOnce sync.Once
}

// Events yields deliveries until the client is closed.
func (c *Client) Events() <-chan Delivery { return c.out }

// Done is closed when the manager drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		close(c.out)
	})
}

// backlog keeps the most recent sequenced deliveries for replay.
type backlog struct {
	items []Delivery
}

func (b *backlog) push(d Delivery) {
	if len(b.items) == backlogSize {
		copy(b.items, b.items[1:])
		b.items = b.items[:backlogSize-1]
	}
	b.items = append(b.items, d)
}

// since returns deliveries after seq; complete is false when older ones were evicted.
func (b *backlog) since(seq uint64) (missed []Delivery, complete bool) {
	if len(b.items) == 0 {
		return nil, true
	}
	i := sort.Search(len(b.items), func(i int) bool { return b.items[i].Seq > seq })
	return slices.Clone(b.items[i:]), b.items[0].Seq <= seq+1
}

// Manager fans events out to open browser tabs.
type Manager struct {
	logger    *slog.Logger
	queue     chan Event
	heartbeat time.Duration

	mu      sync.Mutex
	clients map[string]*Client
	seq     uint64
	recent  backlog

	// gate orders Emit against the queue being closed.
	gate    sync.RWMutex
	closed  bool
	running atomic.Bool
	stopped chan struct{}
}

// NewManager creates a Manager. Call Start to begin delivering.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger,
		queue:     make(chan Event, queueSize),
		heartbeat: 30 * time.Second,
		clients:   make(map[string]*Client),
		stopped:   make(chan struct{}),
	}
}

// Start runs the delivery loop until ctx ends or Shutdown closes the queue.
func (m *Manager) Start(ctx context.Context) {
	m.running.Store(true)
	defer close(m.stopped)

	m.logger.Info("SSE manager starting")

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-m.queue:
			if !ok {
				return
			}
			m.publish(evt)
		case <-ticker.C:
			m.publish(NewHeartbeatEvent())
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.dropAll()
			return
		}
	}
}

// Shutdown refuses further events, delivers what is queued and closes every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.gate.Lock()
	if m.closed {
		m.gate.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.gate.Unlock()

	if m.running.Load() {
		select {
		case <-m.stopped:
		case <-ctx.Done():
			m.logger.Warn("SSE loop did not stop in time, delivering remaining events here")
		}
	}
	for evt := range m.queue {
		m.publish(evt)
	}
	m.dropAll()

	m.logger.Info("SSE manager shutdown complete")
	return nil
}

// Emit queues an event. Anything other than an Event is logged and ignored.
func (m *Manager) Emit(event any) {
	evt, ok := event.(Event)
	if !ok {
		m.logger.Error("ignoring non-SSE event", slog.String("go_type", fmt.Sprintf("%T", event)))
		return
	}

	m.gate.RLock()
	defer m.gate.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- evt:
	default:
		m.logger.Error("SSE queue full, dropping event", slog.String("event_type", string(evt.Type)))
	}
}

func (m *Manager) publish(evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Delivery{Event: evt}
	if evt.Type != EventHeartbeat {
		m.seq++
		d.Seq = m.seq
		m.recent.push(d)
	}

	var sent, dropped int
	for _, c := range m.clients {
		if !c.sub.wants(evt.Type) {
			continue
		}
		select {
		case c.out <- d:
			sent++
		default:
			dropped++
			m.logger.Warn("client too slow, event dropped",
				slog.String("client_id", c.ID),
				slog.String("event_type", string(evt.Type)))
		}
	}

	if evt.Type != EventHeartbeat {
		m.logger.Debug("event published",
			slog.String("event_type", string(evt.Type)),
			slog.Uint64("seq", d.Seq),
			slog.Int("sent", sent),
			slog.Int("dropped", dropped))
	}
}

// Connect registers a tab and queues whatever it missed since sub.LastSeq.
func (m *Manager) Connect(sub Subscription) (*Client, error) {
	m.gate.RLock()
	closed := m.closed
	m.gate.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var missed []Delivery
	complete := true
	if sub.LastSeq > 0 {
		if sub.LastSeq > m.seq {
			complete = false
		} else {
			missed, complete = m.recent.since(sub.LastSeq)
			missed = slices.DeleteFunc(missed, func(d Delivery) bool { return !sub.wants(d.Event.Type) })
		}
	}

	c := &Client{
		ConnectedAt: time.Now(),
		ID:          id.String(),
		Resync:      !complete,
		out:         make(chan Delivery, clientBuffer+len(missed)),
		done:        make(chan struct{}),
		sub:         sub,
	}
	for _, d := range missed {
		c.out <- d
	}
	m.clients[c.ID] = c
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", c.ID),
		slog.Int("replayed", len(missed)),
		slog.Bool("resync", c.Resync),
		slog.Int("total_clients", total))
	return c, nil
}

// Disconnect removes a client. Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()
	if !ok {
		return
	}

	c.close()
	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(c.ConnectedAt)),
		slog.Int("total_clients", total))
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// LastSeq returns the position of the newest published event.
func (m *Manager) LastSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		m.logger.Info("all SSE clients disconnected", slog.Int("count", len(clients)))
	}
}
