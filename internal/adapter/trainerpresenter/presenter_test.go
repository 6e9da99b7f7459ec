package trainerpresenter

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/park285/Memo-KakaoTalk-bot/pkg/memodto"
)

func TestPresenterMemoSendsTextThenImage(t *testing.T) {
	var messages, images []string
	p := NewPresenter(
		func(room, message string) error {
			messages = append(messages, room+"|"+message)
			return nil
		},
		func(room, imageBase64 string) error {
			images = append(images, imageBase64)
			return nil
		},
	)

	state := &memodto.SessionState{MemoImage: []byte{0x89, 0x50, 0x4e, 0x47}}
	ref, err := p.Memo("roomA", "memo text", state)
	if err != nil {
		t.Fatalf("memo delivery: %v", err)
	}
	if ref == "" {
		t.Fatal("delivered action must carry an outbound ref")
	}
	if len(messages) != 1 || messages[0] != "roomA|memo text" {
		t.Fatalf("text delivery = %v", messages)
	}
	if len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString(state.MemoImage) {
		t.Fatalf("image delivery = %v", images)
	}
}

func TestPresenterMemoWithoutImage(t *testing.T) {
	imageCalls := 0
	p := NewPresenter(
		func(room, message string) error { return nil },
		func(room, imageBase64 string) error { imageCalls++; return nil },
	)

	ref, err := p.Memo("roomA", "text only", &memodto.SessionState{})
	if err != nil {
		t.Fatalf("memo delivery: %v", err)
	}
	if ref == "" {
		t.Fatal("text-only memo still counts as a delivered action")
	}
	if imageCalls != 0 {
		t.Fatal("no image must be sent without a rendered card")
	}
}

func TestPresenterTextSkipsBlank(t *testing.T) {
	calls := 0
	p := NewPresenter(func(room, message string) error { calls++; return nil }, nil)

	ref, err := p.Text("roomA", "   ")
	if err != nil {
		t.Fatalf("blank text: %v", err)
	}
	if ref != "" || calls != 0 {
		t.Fatalf("blank text must be dropped, ref=%q calls=%d", ref, calls)
	}
}

func TestPresenterPropagatesSendError(t *testing.T) {
	wantErr := errors.New("socket closed")
	p := NewPresenter(func(room, message string) error { return wantErr }, nil)

	ref, err := p.Text("roomA", "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("send error lost, got %v", err)
	}
	if ref != "" {
		t.Fatal("failed delivery must not mint a ref")
	}
}
