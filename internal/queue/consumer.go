package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer drains the pool.events queue into an append-only audit log,
// one line per event.
type Consumer struct {
    URL     string
    LogPath string // defaults to logs/pools.log
    Log     *zap.Logger
}

// Run consumes until ctx ends, reconnecting after broker failures.  Messages
// that cannot be handled are rejected without requeue to avoid tight loops.
func (c *Consumer) Run(ctx context.Context) error {
    if c.LogPath == "" {
        c.LogPath = filepath.Join("logs", "pools.log")
    }
    if c.Log == nil {
        c.Log = zap.NewNop()
    }
    log := c.Log.Named("pool-consumer")

    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        log.Warn("consume loop ended; reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(PoolEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(PoolEventsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := appendEvent(c.LogPath, d.Body); err != nil {
                log.Error("handle message failed", zap.Error(err))
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func appendEvent(path string, body []byte) error {
    var ev PoolEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.PoolID == "" || ev.Type == "" {
        return errors.New("incomplete event")
    }
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatEvent(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatEvent(ev PoolEvent) string {
    return fmt.Sprintf("[%s] %s | registry=%q | pool_id=%q\n", ev.OccurredAt, ev.Type, ev.Registry, ev.PoolID)
}

func sleep(ctx context.Context, d time.Duration) bool {
    select {
    case <-ctx.Done():
        return false
    case <-time.After(d):
        return true
    }
}
