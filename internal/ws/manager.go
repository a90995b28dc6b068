package ws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iliyamo/mealmatch/internal/utils"
)

// ErrPoolNotFound is returned by RunSerialized when the pool no longer exists.
var ErrPoolNotFound = errors.New("ws: pool not found")

// HandlerFunc processes one decoded envelope.  Returning a *Status reports it
// to the originating connection; any other error (or a panic) is logged and
// broadcast to the pool as an internal error.
type HandlerFunc func(ctx context.Context, m *Manager, req *Request) error

// Request is the input of a HandlerFunc.
type Request struct {
	PoolID   string
	Envelope Envelope
	Conn     *Conn
	Params   map[string]string
}

// PoolObserver is notified when a pool is created by its first Join and when
// it is removed by its last Leave.  registry is the name of the protocol the
// Manager serves.  Calls are made outside the registry lock.
type PoolObserver interface {
	PoolOpened(registry, poolID string)
	PoolClosed(registry, poolID string)
}

type pool struct {
	conns []*Conn
	queue *ticketQueue
}

// Manager is the registry of live connections grouped into pools.  Handler
// invocations inside one pool run one at a time in arrival order.
//
// A Manager serves exactly one Protocol.  Pool ids are only unique within a
// protocol, so two protocols sharing a registry would deliver each other's
// traffic regardless of their admission rules.
type Manager struct {
	mu           sync.RWMutex
	name         string // protocol bound by NewProtocol; guarded by mu
	pools        map[string]*pool
	queueTimeout time.Duration
	observer     PoolObserver
	log          *zap.Logger
	now          func() time.Time
}

type Option func(*Manager)

// WithQueueTimeout sets how long a ticket may wait before the pool head is evicted.
func WithQueueTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.queueTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithObserver(o PoolObserver) Option {
	return func(m *Manager) { m.observer = o }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pools:        make(map[string]*pool),
		queueTimeout: DefaultQueueTimeout,
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the name of the protocol served by m, or "" before one is bound.
func (m *Manager) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// bind claims m for protocol.  It panics when m already serves another one.
func (m *Manager) bind(protocol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.name != "" && m.name != protocol {
		panic(fmt.Sprintf("ws: manager already serves protocol %q, cannot bind %q", m.name, protocol))
	}
	m.name = protocol
}

// Join adds c to poolID, creating the pool when needed.  Joining twice is a no-op.
func (m *Manager) Join(c *Conn, poolID string) {
	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		p = &pool{queue: newTicketQueue(m.now)}
		m.pools[poolID] = p
	}
	for _, x := range p.conns {
		if x == c {
			m.mu.Unlock()
			return
		}
	}
	p.conns = append(p.conns, c)
	size := len(p.conns)
	name := m.name
	m.mu.Unlock()

	m.log.Debug("connection joined", zap.String("pool_id", poolID), zap.String("conn_id", c.ID()), zap.Int("pool_size", size))
	if !ok && m.observer != nil {
		m.observer.PoolOpened(name, poolID)
	}
}

// Leave removes c from poolID and deletes the pool once it is empty.  It
// reports whether c was a member.
func (m *Manager) Leave(c *Conn, poolID string) bool {
	m.mu.Lock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	idx := -1
	for i, x := range p.conns {
		if x == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	p.conns = append(p.conns[:idx], p.conns[idx+1:]...)
	emptied := len(p.conns) == 0
	if emptied {
		delete(m.pools, poolID)
	}
	name := m.name
	m.mu.Unlock()

	m.log.Debug("connection left", zap.String("pool_id", poolID), zap.String("conn_id", c.ID()))
	if emptied && m.observer != nil {
		m.observer.PoolClosed(name, poolID)
	}
	return true
}

// Disconnect closes c with a normal closure and removes it from poolID.
func (m *Manager) Disconnect(c *Conn, poolID string) {
	_ = c.Close(websocket.CloseNormalClosure, "")
	m.Leave(c, poolID)
}

// DisconnectPool sends env to every member of poolID, then disconnects them.
// It returns the number of connections that were closed.
func (m *Manager) DisconnectPool(poolID string, env Envelope) int {
	conns := m.snapshot(poolID)
	for _, c := range conns {
		m.Unicast(c, env)
		m.Disconnect(c, poolID)
	}
	return len(conns)
}

// Unicast sends env to c when it is connected.  Send failures are logged
// and otherwise ignored; the reader loop of c tears it down.
func (m *Manager) Unicast(c *Conn, env Envelope) {
	if !c.Connected() {
		return
	}
	if err := c.Send(env); err != nil && !errors.Is(err, ErrConnClosed) {
		m.log.Debug("send failed", zap.String("conn_id", c.ID()), zap.Error(err))
	}
}

// SendStatus unicasts the envelope form of s.
func (m *Manager) SendStatus(c *Conn, s *Status) { m.Unicast(c, s.Envelope()) }

// BroadcastPool sends env to every connected member of poolID.  An unknown
// pool is a no-op.
func (m *Manager) BroadcastPool(poolID string, env Envelope) {
	for _, c := range m.snapshot(poolID) {
		m.Unicast(c, env)
	}
}

// BroadcastAll sends env to every connected member of every pool.
func (m *Manager) BroadcastAll(env Envelope) {
	m.mu.RLock()
	var conns []*Conn
	for _, p := range m.pools {
		conns = append(conns, p.conns...)
	}
	m.mu.RUnlock()
	for _, c := range conns {
		m.Unicast(c, env)
	}
}

func (m *Manager) snapshot(poolID string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[poolID]
	if !ok {
		return nil
	}
	return append([]*Conn(nil), p.conns...)
}

// ConnectionCount returns the number of members of poolID.
func (m *Manager) ConnectionCount(poolID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.pools[poolID]; ok {
		return len(p.conns)
	}
	return 0
}

func (m *Manager) TotalConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.pools {
		n += len(p.conns)
	}
	return n
}

// PoolInfo summarizes one pool.
type PoolInfo struct {
	Registry    string `json:"registry"`
	ID          string `json:"pool_id"`
	Connections int    `json:"connections"`
	Queued      int    `json:"queued"`
}

// Pools lists the live pools ordered by id.
func (m *Manager) Pools() []PoolInfo {
	m.mu.RLock()
	out := make([]PoolInfo, 0, len(m.pools))
	queues := make([]*ticketQueue, 0, len(m.pools))
	for id, p := range m.pools {
		out = append(out, PoolInfo{Registry: m.name, ID: id, Connections: len(p.conns)})
		queues = append(queues, p.queue)
	}
	m.mu.RUnlock()
	for i, q := range queues {
		out[i].Queued = q.len()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pool returns the summary of poolID.
func (m *Manager) Pool(poolID string) (PoolInfo, bool) {
	m.mu.RLock()
	p, ok := m.pools[poolID]
	if !ok {
		m.mu.RUnlock()
		return PoolInfo{}, false
	}
	info := PoolInfo{Registry: m.name, ID: poolID, Connections: len(p.conns)}
	q := p.queue
	m.mu.RUnlock()
	info.Queued = q.len()
	return info, true
}

// RunSerialized waits for req's turn in its pool queue and runs h.  Handler
// failures are reported to the connection or the pool and never returned;
// the returned error is non-nil only when the pool is gone or ctx ended
// while waiting.
func (m *Manager) RunSerialized(ctx context.Context, action string, h HandlerFunc, req *Request) error {
	m.mu.RLock()
	p, ok := m.pools[req.PoolID]
	m.mu.RUnlock()
	if !ok {
		return ErrPoolNotFound
	}

	q := p.queue
	t := q.enqueue()
	onEvict := func(ev *ticket) {
		m.log.Warn("pool queue head evicted",
			zap.String("pool_id", req.PoolID),
			zap.Uint64("ticket", ev.seq),
			zap.Duration("waited", m.now().Sub(ev.enqueued)),
			zap.Duration("held", m.now().Sub(ev.headAt)))
	}
	if err := q.wait(ctx, t, m.queueTimeout, onEvict); err != nil {
		return err
	}
	defer q.release(t)

	err := invoke(ctx, m, h, req)
	if err == nil || errors.Is(err, ErrConnClosed) {
		return nil
	}

	var st *Status
	if errors.As(err, &st) {
		m.SendStatus(req.Conn, st)
		return nil
	}

	incident, _ := utils.RandomHex(4)
	m.log.Error("handler failed",
		zap.String("pool_id", req.PoolID),
		zap.String("action", action),
		zap.String("conn_id", req.Conn.ID()),
		zap.String("incident", incident),
		zap.Error(err))
	m.BroadcastPool(req.PoolID, internalError(incident).Envelope())
	return nil
}

func invoke(ctx context.Context, m *Manager, h HandlerFunc, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, m, req)
}
