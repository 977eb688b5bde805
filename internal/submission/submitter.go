package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kingrea/patchmatrix/internal/matrix"
)

// SeverityErrorHeader is the notification class used for failed submissions.
const SeverityErrorHeader = "errorHeader"

var (
	// ErrInFlight rejects a submit while another one is outstanding.
	ErrInFlight = errors.New("submission: a submission is already in progress")
	// ErrTransport wraps every failure returned by the transport.
	ErrTransport = errors.New("submission: transport failed")
)

// Result is the patch server's answer to a successful submission.
type Result struct {
	Version string `json:"version"`
}

// VersionURL is where the UI goes after a successful submission.
func VersionURL(version string) string {
	return "/version/" + version
}

// Transport delivers a payload for a patch.
type Transport interface {
	SubmitPatch(ctx context.Context, patchID string, payload Payload) (Result, error)
}

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(message, severityClass string)
}

// Navigator moves the user to another page once a submission succeeds.
type Navigator interface {
	Navigate(url string) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(message, severityClass string)

// Notify calls f.
func (f NotifierFunc) Notify(message, severityClass string) {
	if f != nil {
		f(message, severityClass)
	}
}

// NavigatorFunc adapts a function into a Navigator.
type NavigatorFunc func(url string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(url string) error {
	if f == nil {
		return nil
	}
	return f(url)
}

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// BodyError is implemented by transport errors that carry the server's raw
// response body.
type BodyError interface {
	error
	ResponseBody() string
}

// Submitter sends the matrix payload through a Transport and reports the
// outcome to the notification and navigation collaborators.
type Submitter struct {
	transport Transport
	notifier  Notifier
	navigator Navigator
	logger    Logger
	inFlight  atomic.Bool
}

// Option customizes a Submitter.
type Option func(*Submitter)

// WithNotifier sets the failure notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Submitter) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithNavigator sets the post-success navigation target.
func WithNavigator(n Navigator) Option {
	return func(s *Submitter) {
		if n != nil {
			s.navigator = n
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l Logger) Option {
	return func(s *Submitter) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSubmitter builds a Submitter around transport.
func NewSubmitter(transport Transport, opts ...Option) *Submitter {
	s := &Submitter{
		transport: transport,
		notifier:  NotifierFunc(nil),
		navigator: NavigatorFunc(nil),
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// InFlight reports whether a submission is outstanding.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

// Submit builds the payload from m and sends it for patchID. The matrix is
// only read, so a failed submission leaves it ready for a retry.
func (s *Submitter) Submit(ctx context.Context, patchID string, m *matrix.Matrix) (Result, error) {
	return s.SubmitPayload(ctx, patchID, Build(m))
}

// SubmitPayload sends an already built payload.
func (s *Submitter) SubmitPayload(ctx context.Context, patchID string, payload Payload) (Result, error) {
	if s.transport == nil {
		return Result{}, fmt.Errorf("%w: no transport configured", ErrTransport)
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrInFlight
	}
	defer s.inFlight.Store(false)

	s.logger.Printf("submission: sending %d cells across %d variants for patch %s", payload.Len(), len(payload), patchID)
	result, err := s.transport.SubmitPatch(ctx, patchID, payload)
	if err != nil {
		s.logger.Printf("submission: patch %s failed: %v", patchID, err)
		s.notifier.Notify("Error submitting patch: "+failureDetail(err), SeverityErrorHeader)
		return Result{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	s.logger.Printf("submission: patch %s accepted as version %s", patchID, result.Version)
	if err := s.navigator.Navigate(VersionURL(result.Version)); err != nil {
		s.logger.Printf("submission: navigate to version %s: %v", result.Version, err)
	}
	return result, nil
}

func failureDetail(err error) string {
	var be BodyError
	if errors.As(err, &be) {
		if body := strings.TrimSpace(be.ResponseBody()); body != "" {
			return body
		}
	}
	return err.Error()
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
