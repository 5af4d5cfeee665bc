package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/park285/cheese-chess-server/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const dialTimeout = 10 * time.Second

// Session is a client-side game connection.
type Session struct {
	conn *websocket.Conn
}

// Dial opens a websocket to wsURL authenticated with a bearer token.
func Dial(ctx context.Context, wsURL, token string) (*Session, error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(dctx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      hdr,
	})
	if err != nil {
		return nil, err
	}
	return &Session{conn: conn}, nil
}

func (s *Session) Send(ctx context.Context, cmd chessdto.Command) error {
	return wsjson.Write(ctx, s.conn, cmd)
}

// Next blocks for the next server envelope.
func (s *Session) Next(ctx context.Context) (chessdto.RawEnvelope, error) {
	var env chessdto.RawEnvelope
	err := wsjson.Read(ctx, s.conn, &env)
	return env, err
}

func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "close")
}
