package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "sync/atomic"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// publishChannel is the part of *amqp.Channel used to publish.
type publishChannel interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher forwards pool lifecycle events to RabbitMQ.  It implements
// ws.PoolObserver: notifications are buffered and never block the registry;
// when the buffer is full the event is dropped and counted.  Run owns the
// broker connection and must be started for anything to be published.
type Publisher struct {
    url     string
    events  chan PoolEvent
    log     *zap.Logger
    now     func() time.Time
    dropped atomic.Uint64
}

// NewPublisher returns a Publisher buffering up to buffer events.
func NewPublisher(url string, buffer int, log *zap.Logger) *Publisher {
    if buffer < 1 {
        buffer = 1
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{
        url:    url,
        events: make(chan PoolEvent, buffer),
        log:    log.Named("pool-publisher"),
        now:    time.Now,
    }
}

func (p *Publisher) PoolOpened(registry, poolID string) {
    p.enqueue(newPoolEvent(PoolOpened, registry, poolID, p.now()))
}

func (p *Publisher) PoolClosed(registry, poolID string) {
    p.enqueue(newPoolEvent(PoolClosed, registry, poolID, p.now()))
}

// Dropped returns how many events were discarded because the buffer was full.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

func (p *Publisher) enqueue(ev PoolEvent) {
    select {
    case p.events <- ev:
    default:
        p.dropped.Add(1)
        p.log.Warn("event buffer full; dropping",
            zap.String("type", string(ev.Type)), zap.String("registry", ev.Registry), zap.String("pool_id", ev.PoolID))
    }
}

// Run connects to the broker and publishes buffered events until ctx ends.
// Connection failures are retried with exponential backoff capped at 30s.
func (p *Publisher) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        err := p.session(ctx)
        if ctx.Err() != nil {
            return nil
        }
        p.log.Warn("publisher session ended; reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
        select {
        case <-ctx.Done():
            return nil
        case <-time.After(backoff):
        }
        if backoff < 30*time.Second {
            backoff *= 2
        }
    }
}

func (p *Publisher) session(ctx context.Context) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // durable so events survive broker restarts
    if _, err := ch.QueueDeclare(PoolEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    p.log.Info("publisher connected", zap.String("queue", PoolEventsQueue))

    closed := conn.NotifyClose(make(chan *amqp.Error, 1))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case amqpErr := <-closed:
            return fmt.Errorf("connection closed: %v", amqpErr)
        case ev := <-p.events:
            if err := publish(ctx, ch, ev, p.now()); err != nil {
                p.log.Error("publish failed", zap.String("pool_id", ev.PoolID), zap.Error(err))
                return err
            }
        }
    }
}

// publish sends ev as a persistent JSON message on the default exchange.
func publish(ctx context.Context, ch publishChannel, ev PoolEvent, now time.Time) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }
    return ch.PublishWithContext(ctx, "", PoolEventsQueue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    now.UTC(),
        Type:         string(ev.Type),
        Body:         body,
    })
}
