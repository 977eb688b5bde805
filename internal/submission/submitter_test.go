package submission

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kingrea/patchmatrix/internal/matrix"
)

type fakeTransport struct {
	calls   int
	patchID string
	payload Payload
	result  Result
	err     error
	during  func()
}

func (f *fakeTransport) SubmitPatch(_ context.Context, patchID string, payload Payload) (Result, error) {
	f.calls++
	f.patchID = patchID
	f.payload = payload
	if f.during != nil {
		f.during()
	}
	return f.result, f.err
}

type bodyErr struct{ body string }

func (e bodyErr) Error() string        { return "server said no" }
func (e bodyErr) ResponseBody() string { return e.body }

func TestSubmitNavigatesOnSuccess(t *testing.T) {
	m := scenarioMatrix()
	m.Select(0, matrix.Modifiers{})
	m.Aggregator().Set("test", true)

	transport := &fakeTransport{result: Result{Version: "ver-1"}}
	var navigated string
	var notified []string
	s := NewSubmitter(transport,
		WithNavigator(NavigatorFunc(func(url string) error {
			navigated = url
			return nil
		})),
		WithNotifier(NotifierFunc(func(msg, _ string) { notified = append(notified, msg) })))

	result, err := s.Submit(context.Background(), "p1", m)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Version != "ver-1" {
		t.Fatalf("version = %q, want ver-1", result.Version)
	}
	if navigated != "/version/ver-1" {
		t.Fatalf("navigated to %q, want /version/ver-1", navigated)
	}
	if len(notified) != 0 {
		t.Fatalf("success must not notify, got %v", notified)
	}
	if transport.patchID != "p1" || transport.payload.Len() != 1 {
		t.Fatalf("transport got patch %q payload %+v", transport.patchID, transport.payload)
	}
}

func TestSubmitFailureNotifiesAndKeepsMatrix(t *testing.T) {
	m := scenarioMatrix()
	m.Select(0, matrix.Modifiers{})
	m.Aggregator().Set("test", true)
	before := Build(m)

	transport := &fakeTransport{err: bodyErr{body: `{"error":"unknown variant"}`}}
	var message, class string
	navigated := false
	s := NewSubmitter(transport,
		WithNotifier(NotifierFunc(func(msg, severity string) { message, class = msg, severity })),
		WithNavigator(NavigatorFunc(func(string) error { navigated = true; return nil })))

	_, err := s.Submit(context.Background(), "p1", m)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if navigated {
		t.Fatalf("failure must not navigate")
	}
	if class != SeverityErrorHeader {
		t.Fatalf("severity = %q, want %q", class, SeverityErrorHeader)
	}
	if !strings.Contains(message, `{"error":"unknown variant"}`) {
		t.Fatalf("notification should carry the body verbatim, got %q", message)
	}
	if after := Build(m); after.Len() != before.Len() {
		t.Fatalf("matrix changed by failed submit")
	}
	if v, _ := m.At(0); !v.Selected {
		t.Fatalf("selection changed by failed submit")
	}

	transport.err = nil
	transport.result = Result{Version: "ver-2"}
	if _, err := s.Submit(context.Background(), "p1", m); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

func TestSubmitFailureWithoutBodyUsesError(t *testing.T) {
	transport := &fakeTransport{err: errors.New("connection refused")}
	var message string
	s := NewSubmitter(transport, WithNotifier(NotifierFunc(func(msg, _ string) { message = msg })))
	if _, err := s.SubmitPayload(context.Background(), "p1", Payload{}); err == nil {
		t.Fatalf("expected error")
	}
	if message != "Error submitting patch: connection refused" {
		t.Fatalf("message = %q", message)
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	transport := &fakeTransport{result: Result{Version: "v"}}
	s := NewSubmitter(transport)
	var nestedErr error
	transport.during = func() {
		if !s.InFlight() {
			t.Errorf("expected submission to be in flight")
		}
		_, nestedErr = s.SubmitPayload(context.Background(), "p1", Payload{})
	}
	if _, err := s.SubmitPayload(context.Background(), "p1", Payload{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !errors.Is(nestedErr, ErrInFlight) {
		t.Fatalf("nested submit error = %v, want ErrInFlight", nestedErr)
	}
	if transport.calls != 1 {
		t.Fatalf("transport called %d times, want 1", transport.calls)
	}
	if s.InFlight() {
		t.Fatalf("in-flight flag must clear after completion")
	}
}

func TestSubmitWithoutTransport(t *testing.T) {
	s := NewSubmitter(nil)
	if _, err := s.SubmitPayload(context.Background(), "p1", Payload{}); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
