package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iliyamo/mealmatch/internal/utils"
)

// Protocol serves one kind of websocket endpoint: it admits connections
// against its permission sets, joins them to a pool of the shared Manager
// and runs their receive loop.
type Protocol struct {
	name         string
	manager      *Manager
	allowed      map[Action]bool
	handlers     map[Action]HandlerFunc
	permissions  [][]Permission
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	log          *zap.Logger
}

type ProtocolOption func(*Protocol)

// WithActions replaces the accepted action set and the handler map.  Actions
// in allowed without a handler are answered with 501.
func WithActions(allowed []Action, handlers map[Action]HandlerFunc) ProtocolOption {
	return func(p *Protocol) {
		p.allowed = make(map[Action]bool, len(allowed))
		for _, a := range allowed {
			p.allowed[a] = true
		}
		p.handlers = handlers
	}
}

// WithPermissions sets the admission rules; each argument is one
// conjunction and the connection is admitted when any conjunction passes.
func WithPermissions(sets ...[]Permission) ProtocolOption {
	return func(p *Protocol) { p.permissions = sets }
}

func WithUpgrader(u websocket.Upgrader) ProtocolOption {
	return func(p *Protocol) { p.upgrader = u }
}

func WithWriteTimeout(d time.Duration) ProtocolOption {
	return func(p *Protocol) { p.writeTimeout = d }
}

func WithProtocolLogger(l *zap.Logger) ProtocolOption {
	return func(p *Protocol) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProtocol returns a base protocol (POOL_MESSAGE, GLOBAL_MESSAGE, no
// admission rules) customized by opts.  m becomes dedicated to this
// protocol; NewProtocol panics if m already serves a protocol with another
// name.
func NewProtocol(name string, m *Manager, opts ...ProtocolOption) *Protocol {
	m.bind(name)
	p := &Protocol{
		name:    name,
		manager: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: 10 * time.Second,
		log:          zap.NewNop(),
	}
	WithActions(BaseActions, BaseHandlers())(p)
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("protocol", name))
	return p
}

func (p *Protocol) Name() string { return p.name }

// Handle admits, upgrades and serves one connection attempt.  It returns
// after the connection is closed.  A denied attempt still completes the
// handshake so the client receives the denial status before a normal close.
func (p *Protocol) Handle(w http.ResponseWriter, r *http.Request, poolID string, params map[string]string) error {
	ctx := r.Context()
	ac := &AdmissionContext{PoolID: poolID, AccessToken: AccessTokenFromRequest(r), Params: params}
	denial := p.admit(ctx, ac)

	wsConn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		p.log.Debug("upgrade failed", zap.String("pool_id", poolID), zap.Error(err))
		return nil
	}
	conn := NewConn(wsConn, p.writeTimeout)

	if denial != nil {
		p.log.Info("connection denied", zap.String("pool_id", poolID), zap.Int("status", denial.Code))
		p.manager.SendStatus(conn, denial)
		_ = conn.Close(websocket.CloseNormalClosure, "")
		return nil
	}

	p.Serve(ctx, conn, poolID, params)
	return nil
}

func (p *Protocol) admit(ctx context.Context, ac *AdmissionContext) *Status {
	err := Evaluate(ctx, p.permissions, ac)
	if err == nil {
		return nil
	}
	var st *Status
	if errors.As(err, &st) {
		return st
	}
	incident, _ := utils.RandomHex(4)
	p.log.Error("admission check failed", zap.String("pool_id", ac.PoolID), zap.String("incident", incident), zap.Error(err))
	return internalError(incident)
}

// Serve joins an admitted connection to poolID and runs its receive loop
// until the peer goes away or the connection is closed server side.
func (p *Protocol) Serve(ctx context.Context, conn *Conn, poolID string, params map[string]string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.manager.Join(conn, poolID)
	defer p.manager.Disconnect(conn, poolID)
	p.manager.SendStatus(conn, StatusConnected)

	for {
		data, err := conn.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				p.log.Debug("read failed", zap.String("pool_id", poolID), zap.String("conn_id", conn.ID()), zap.Error(err))
			}
			return
		}

		env, st := p.decode(data)
		if st != nil {
			p.manager.SendStatus(conn, st)
			continue
		}
		h, ok := p.handlers[env.Action]
		if !ok {
			h = HandleNotImplemented
		}
		req := &Request{PoolID: poolID, Envelope: env, Conn: conn, Params: params}
		if err := p.manager.RunSerialized(ctx, string(env.Action), h, req); err != nil {
			return
		}
	}
}

// decode validates one inbound frame.  Frames that are not JSON yield
// ErrJSONUnserializable; JSON that is not an envelope of an accepted action
// yields ErrActionNotFound.
func (p *Protocol) decode(data []byte) (Envelope, *Status) {
	if !json.Valid(data) {
		return Envelope{}, ErrJSONUnserializable
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrActionNotFound
	}
	if !p.allowed[env.Action] {
		return Envelope{}, ErrActionNotFound
	}
	return env, nil
}
