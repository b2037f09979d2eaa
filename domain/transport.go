package domain

import (
	"context"
)

//go:generate go tool mockgen -destination mocks/transport_mock.go -package mocks alphastral/domain Transport

// Transport はClient（プロトコルクライアント）が依存するI/O境界です。
type Transport interface {
	Read(ctx context.Context) (data []byte, err error)
	Write(ctx context.Context, data []byte) error
	Close(code int32, reason string) error
}

// DialFunc はエンジンへの新しい物理接続を確立します。
// 再接続ポリシーはSessionが持つため、接続の作り方だけを注入します。
type DialFunc func(ctx context.Context) (Transport, error)
