package domain_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"alphastral/domain"
	"alphastral/domain/mocks"
)

// 1フレーム内の複数イベントが到着順にひとつずつ返ることを確認
func TestClient_ReceiveBuffersFrameInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Read(gomock.Any()).Return([]byte(">room1\n|turn|1\n|faint|p2a: Pikachu"), nil)

	client := domain.NewClient(tr)
	ctx := context.Background()

	first, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Type != "turn" {
		t.Errorf("first type = %q, want turn", first.Type)
	}

	second, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Type != "faint" {
		t.Errorf("second type = %q, want faint", second.Type)
	}
	if second.Room != "room1" {
		t.Errorf("room = %q, want room1", second.Room)
	}
}

// 読み取り失敗がErrConnectionLostに写像され、以降の呼び出しも失敗することを確認
func TestClient_ReadFailureIsConnectionLost(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Read(gomock.Any()).Return(nil, errors.New("broken pipe"))

	client := domain.NewClient(tr)

	_, err := client.Receive(context.Background())
	if !errors.Is(err, domain.ErrConnectionLost) {
		t.Fatalf("err = %v, want ErrConnectionLost", err)
	}

	// 2回目はTransportに触れずに失敗する
	_, err = client.Receive(context.Background())
	if !errors.Is(err, domain.ErrConnectionLost) {
		t.Fatalf("second err = %v, want ErrConnectionLost", err)
	}
	if err := client.Send(context.Background(), "room", "/choose p1 move tackle"); !errors.Is(err, domain.ErrConnectionLost) {
		t.Fatalf("send err = %v, want ErrConnectionLost", err)
	}
}

// コマンドがルーム宛のテキスト行として書き込まれることを確認
func TestClient_SendFormatsRoomCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().Write(gomock.Any(), []byte("room1|/choose p1 move tackle")).Return(nil)

	client := domain.NewClient(tr)
	if err := client.Send(context.Background(), "room1", "/choose p1 move tackle"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// 改行入りコマンドと空コマンドがErrProtocolで拒否されることを確認
func TestClient_SendRejectsMalformedCommands(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := mocks.NewMockTransport(ctrl)
	client := domain.NewClient(tr)

	if err := client.Send(context.Background(), "room", "/choose\n/forfeit"); !errors.Is(err, domain.ErrProtocol) {
		t.Errorf("newline err = %v, want ErrProtocol", err)
	}
	if err := client.Send(context.Background(), "room", ""); !errors.Is(err, domain.ErrProtocol) {
		t.Errorf("empty err = %v, want ErrProtocol", err)
	}
}
