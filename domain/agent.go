package domain

import "context"

//go:generate go tool mockgen -destination mocks/agent_mock.go -package mocks alphastral/domain Agent

// Agent は1つの決定ポイントで行動を選ぶ判断主体です。
// 時間予算はctxの期限として呼び出し側が課し、返された決定の検証も
// 呼び出し側が行います。実装は決定的である必要はありません。
type Agent interface {
	// Decide は状態スナップショットと合法手集合から1手を選びます。
	Decide(ctx context.Context, view StateView, legal LegalActionSet) (Decision, error)
	// Name はログとレポートで使う識別子です。
	Name() string
}
