package notify

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackNotifier_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:     "Mission completed",
		Message:   "batch-1: 10/10 completed, 0 failed",
		Type:      NotifySuccess,
		MissionID: "m1",
	})
	if err != nil {
		t.Errorf("Send failed: %v", err)
	}
}

func TestSlackNotifier_EmptyWebhookDisabled(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier should not error: %v", err)
	}
}

func TestSlackColors(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		if got := SlackColor(tt.typ); got != tt.want {
			t.Errorf("SlackColor(%d) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Send(Notification) error { return f.err }

type countingNotifier struct{ count int }

func (c *countingNotifier) Send(Notification) error {
	c.count++
	return nil
}

func TestMultiNotifier_SendsToAll(t *testing.T) {
	a := &countingNotifier{}
	b := &countingNotifier{}
	failure := failingNotifier{err: errors.New("boom")}

	multi := NewMultiNotifier(a, failure, b)
	err := multi.Send(Notification{Title: "x"})

	if a.count != 1 || b.count != 1 {
		t.Error("all notifiers should receive the notification")
	}
	if err == nil {
		t.Error("a failing notifier's error should surface")
	}
}

func TestIconForType(t *testing.T) {
	if IconForType(NotifyError) != "dialog-error" {
		t.Error("error icon mismatch")
	}
	if IconForType(NotifyInfo) != "dialog-information" {
		t.Error("info icon mismatch")
	}
}
