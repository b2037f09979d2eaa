package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection はエンジンへの接続確立に失敗した場合に返されるエラーです。
	ErrConnection = errors.New("cannot establish engine connection")
	// ErrConnectionLost は接続中のセッションで接続が失われた場合に返されるエラーです。
	ErrConnectionLost = errors.New("engine connection lost")
	// ErrProtocol は送信できないコマンドを送ろうとした場合に返されるエラーです。
	ErrProtocol = errors.New("protocol violation")
	// ErrPrecondition は呼び出し前提条件を満たしていない場合に返されるエラーです。
	ErrPrecondition = errors.New("precondition not met")
	// ErrDecisionTimeout はエージェントが時間予算を超過した場合に返されるエラーです。
	ErrDecisionTimeout = errors.New("agent exceeded decision budget")
	// ErrInvalidDecision はエージェントが合法手以外を選択した場合に返されるエラーです。
	ErrInvalidDecision = errors.New("decision outside legal action set")
	// ErrUnknownEvent は未知のイベント種別を適用した場合に返されるエラーです。
	// 致命的ではなく、呼び出し側はログに残して続行します。
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrTurnOrder はターン番号が逆行した場合に返されるエラーです。このバトルに対して致命的です。
	ErrTurnOrder = errors.New("turn number out of order")
)

// StateError はイベント適用の失敗を、対象イベントとともに表します。
type StateError struct {
	Event RawEvent
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("apply %q: %v", e.Event.Type, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Fatal はこのエラーがバトルの継続を不可能にするかどうかを返します。
func (e *StateError) Fatal() bool {
	return !errors.Is(e.Err, ErrUnknownEvent)
}
