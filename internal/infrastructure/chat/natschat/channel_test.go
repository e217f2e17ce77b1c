package natschat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

type fakePublisher struct {
	connected bool
	err       error
	subjects  []string
	payloads  [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakePublisher) IsConnected() bool {
	return f.connected
}

func TestAvailableRequiresConnection(t *testing.T) {
	var nilChannel *Channel
	if nilChannel.Available(context.Background()) {
		t.Fatalf("nil channel reported available")
	}
	if newChannel(&fakePublisher{}, "chat", nil, nil).Available(context.Background()) {
		t.Fatalf("disconnected channel reported available")
	}
	if !newChannel(&fakePublisher{connected: true}, "chat", nil, nil).Available(context.Background()) {
		t.Fatalf("connected channel reported unavailable")
	}
}

func TestSayBulletsPublishesJSON(t *testing.T) {
	pub := &fakePublisher{connected: true}
	ch := newChannel(pub, "mailbills.chat", nil, nil)

	if err := ch.SayBullets(context.Background(), "assistant", "Which one?", []string{"a", "b"}); err != nil {
		t.Fatalf("SayBullets() error = %v", err)
	}
	if len(pub.payloads) != 1 || pub.subjects[0] != "mailbills.chat" {
		t.Fatalf("unexpected publish calls %v", pub.subjects)
	}

	var got message
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Role != "assistant" || got.Intro != "Which one?" || len(got.Bullets) != 2 || got.Text != "" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSayWhileDisconnectedIsTransportError(t *testing.T) {
	ch := newChannel(&fakePublisher{}, "chat", nil, nil)
	if err := ch.Say(context.Background(), "assistant", "hi"); !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestPublishFailureIsTransportError(t *testing.T) {
	ch := newChannel(&fakePublisher{connected: true, err: errors.New("write: broken pipe")}, "chat", nil, nil)
	if err := ch.Say(context.Background(), "assistant", "hi"); !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
