package trainerpresenter

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/park285/Memo-KakaoTalk-bot/pkg/memodto"
)

// Presenter delivers formatted messages and memo card images without coupling to the command layer.
// Every delivered action gets an outbound ref; the transport cannot delete
// messages, so sessions track the latest ref to supersede older prompts.
type Presenter struct {
	sendMessage func(room, message string) error
	sendImage   func(room, imageBase64 string) error
}

func NewPresenter(sendMessage func(room, message string) error, sendImage func(room, imageBase64 string) error) *Presenter {
	return &Presenter{
		sendMessage: sendMessage,
		sendImage:   sendImage,
	}
}

// Text sends one reply and returns its outbound ref. Blank messages are
// dropped and return an empty ref.
func (p *Presenter) Text(room, message string) (string, error) {
	if p == nil || p.sendMessage == nil {
		return "", nil
	}
	if strings.TrimSpace(message) == "" {
		return "", nil
	}
	if err := p.sendMessage(room, message); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

// Memo sends the memo text and, when the card was rendered, the PNG as a
// base64 image message. Text and image count as one action under one ref.
func (p *Presenter) Memo(room, message string, state *memodto.SessionState) (string, error) {
	if p == nil {
		return "", nil
	}

	sent := false
	if text := strings.TrimSpace(message); text != "" && p.sendMessage != nil {
		if err := p.sendMessage(room, message); err != nil {
			return "", err
		}
		sent = true
	}

	if state != nil && len(state.MemoImage) > 0 && p.sendImage != nil {
		encoded := base64.StdEncoding.EncodeToString(state.MemoImage)
		if err := p.sendImage(room, encoded); err != nil {
			return "", err
		}
		sent = true
	}

	if !sent {
		return "", nil
	}
	return uuid.NewString(), nil
}
