package showdown

import (
	"context"
	"fmt"

	"github.com/coder/websocket"

	"alphastral/domain"
)

type wsTransport struct {
	conn *websocket.Conn
}

// Dial はエンジンのwebsocketエンドポイントへ接続し、
// domain.Transportとして返します。
func Dial(ctx context.Context, endpoint string) (domain.Transport, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	// requestイベントのJSONはデフォルトの32KiBを超えることがある
	conn.SetReadLimit(1 << 20)
	return &wsTransport{conn: conn}, nil
}

// Dialer はエンドポイント固定のDialFuncを作ります。
func Dialer(endpoint string) domain.DialFunc {
	return func(ctx context.Context) (domain.Transport, error) {
		return Dial(ctx, endpoint)
	}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code int32, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}
