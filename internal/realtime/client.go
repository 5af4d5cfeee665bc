package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeTimeout = 5 * time.Second
	pingTimeout  = 3 * time.Second
	readLimit    = 32 << 10
)

// Client is a websocket connection with its own outbound queue.
type Client struct {
	identity string
	name     string
	conn     *websocket.Conn

	send      chan chessdto.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(identity, name string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{
		identity: identity,
		name:     name,
		conn:     conn,
		send:     make(chan chessdto.Envelope, buffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) Identity() string { return c.identity }

func (c *Client) Name() string { return c.name }

func (c *Client) Send(env chessdto.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// stop marks the client closed; queued envelopes are discarded.
func (c *Client) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case env := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, env)
			wcancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					obslog.L().Warn("ws_write_error", zap.String("identity", c.identity), zap.Error(err))
				}
				return
			}
		}
	}
}

// pingLoop closes the connection after two consecutive failed pings.
func (c *Client) pingLoop(ctx context.Context, cancel context.CancelFunc, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := c.conn.Ping(pctx)
			pcancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				obslog.L().Warn("ws_ping_failure", zap.String("identity", c.identity), zap.Error(err))
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				cancel()
				return
			}
		}
	}
}

// readLoop decodes commands until the connection fails and hands each one to handle.
func (c *Client) readLoop(ctx context.Context, handle func(chessdto.Command)) error {
	c.conn.SetReadLimit(readLimit)
	for {
		var cmd chessdto.Command
		if err := wsjson.Read(ctx, c.conn, &cmd); err != nil {
			return err
		}
		handle(cmd)
	}
}
