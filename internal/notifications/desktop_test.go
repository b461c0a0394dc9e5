package notifications

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestDesktopSenderForwardsPayload(t *testing.T) {
	var gotTitle, gotMessage string
	var gotIcon any
	s := NewDesktopSender(nil, "", []byte{0x89, 'P', 'N', 'G'})
	s.notify = func(title, message string, icon any) error {
		gotTitle, gotMessage, gotIcon = title, message, icon

		return nil
	}

	s.Send(Payload{Title: "IP - connected", Content: "127.0.0.1:51968"})

	if gotTitle != "IP - connected" || gotMessage != "127.0.0.1:51968" {
		t.Fatalf("unexpected notification %q / %q", gotTitle, gotMessage)
	}
	if icon, ok := gotIcon.([]byte); !ok || len(icon) != 4 {
		t.Fatalf("expected icon bytes to be forwarded, got %#v", gotIcon)
	}
}

func TestDesktopSenderLogsBackendErrors(t *testing.T) {
	var out bytes.Buffer
	s := NewDesktopSender(slog.New(slog.NewTextHandler(&out, nil)), "", nil)
	s.notify = func(string, string, any) error {
		return errors.New("no notification daemon")
	}

	s.Send(Payload{Title: "title"})

	if !strings.Contains(out.String(), "no notification daemon") {
		t.Fatalf("expected backend error to be logged, got %q", out.String())
	}
}

func TestSenderFunc(t *testing.T) {
	var got Payload
	var sender Sender = SenderFunc(func(p Payload) { got = p })

	sender.Send(Payload{Title: "a", Content: "b"})

	if got.Title != "a" || got.Content != "b" {
		t.Fatalf("unexpected payload %+v", got)
	}
}
