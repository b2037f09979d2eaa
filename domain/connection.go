package domain

import (
	"context"
	"fmt"
	"strings"
)

// Client は1本のエンジン接続を排他的に所有するプロトコルクライアントです。
// 受信フレームをRawEventに分解して到着順に返し、コマンドをルーム宛の
// テキスト行として送信します。再接続は行いません（ポリシーはSession側）。
type Client struct {
	transport Transport
	pending   []RawEvent
	closed    bool
}

func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// Receive は次のRawEventを返します。バッファが空の場合は次のフレームが
// 届くまでブロックします。接続が失われた場合はErrConnectionLostを返し、
// 以降の呼び出しも失敗します。
func (c *Client) Receive(ctx context.Context) (RawEvent, error) {
	if c.closed {
		return RawEvent{}, ErrConnectionLost
	}
	for len(c.pending) == 0 {
		data, err := c.transport.Read(ctx)
		if err != nil {
			c.closed = true
			return RawEvent{}, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		c.pending = ParseFrame(string(data))
	}
	ev := c.pending[0]
	c.pending = c.pending[1:]
	return ev, nil
}

// Send はルーム宛のコマンドを送信します。roomIDが空の場合はロビー宛です。
func (c *Client) Send(ctx context.Context, roomID, command string) error {
	if c.closed {
		return ErrConnectionLost
	}
	if strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: command contains line break", ErrProtocol)
	}
	if command == "" {
		return fmt.Errorf("%w: empty command", ErrProtocol)
	}
	msg := roomID + "|" + command
	if err := c.transport.Write(ctx, []byte(msg)); err != nil {
		c.closed = true
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.transport.Close(1000, "")
}
