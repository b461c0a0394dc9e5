package acquisition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/simlink/internal/bus"
	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/domain"
)

type fakeAdapter struct {
	mu sync.Mutex

	// connectPlan is consumed one entry per attempt; once empty connectOK applies.
	connectPlan []bool
	connectOK   bool

	dataOK     bool
	linkAlive  bool
	simRunning bool
	weather    []domain.WeatherReport

	connectCalls int
	dataCalls    int
	weatherCalls int
	lastRadius   int
	lastWeather  domain.WeatherRequest
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{connectOK: true}
}

func (f *fakeAdapter) Connect(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connectCalls++
	ok := f.connectOK
	if len(f.connectPlan) > 0 {
		ok = f.connectPlan[0]
		f.connectPlan = f.connectPlan[1:]
	}
	if ok {
		f.dataOK = true
		f.linkAlive = true
		f.simRunning = true
	}

	return ok
}

func (f *fakeAdapter) FetchData(_ context.Context, radiusKm int) (domain.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastRadius = radiusKm
	if !f.dataOK {
		return domain.Frame{}, false
	}
	f.dataCalls++

	return domain.Frame{Payload: []byte(fmt.Sprintf("state-%d", f.dataCalls))}, true
}

func (f *fakeAdapter) FetchWeather(_ context.Context, req domain.WeatherRequest) domain.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.weatherCalls++
	f.lastWeather = req
	reports := make([]domain.WeatherReport, len(f.weather))
	copy(reports, f.weather)

	return domain.Frame{Weather: reports}
}

func (f *fakeAdapter) LinkAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.linkAlive
}

func (f *fakeAdapter) SimRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.simRunning
}

// breakLink makes every fetch fail as if the simulator went away. The next
// failures connect attempts are rejected.
func (f *fakeAdapter) breakLink(failures int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dataOK = false
	f.linkAlive = false
	f.simRunning = false
	f.connectPlan = make([]bool, failures)
}

func (f *fakeAdapter) setDataOK(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataOK = ok
}

func (f *fakeAdapter) setWeather(reports ...domain.WeatherReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weather = reports
}

func (f *fakeAdapter) counts() (connects, weather int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connectCalls, f.weatherCalls
}

// recorder collects everything the service publishes, in order.
type recorder struct {
	mu       sync.Mutex
	frames   []domain.Frame
	statuses []connectors.ConnectionStatus
	messages []connectors.StatusMessage
	sessions []connectors.ReplaySessionEvent
	done     chan struct{}
}

func newRecorder(t *testing.T, b bus.MessageBus) *recorder {
	t.Helper()

	sub := b.Subscribe(
		connectors.TopicFrame,
		connectors.TopicConnStatus,
		connectors.TopicStatusMessage,
		connectors.TopicReplaySession,
	)
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for msg := range sub {
			r.mu.Lock()
			switch v := msg.(type) {
			case domain.Frame:
				r.frames = append(r.frames, v)
			case connectors.ConnectionStatus:
				r.statuses = append(r.statuses, v)
			case connectors.StatusMessage:
				r.messages = append(r.messages, v)
			case connectors.ReplaySessionEvent:
				r.sessions = append(r.sessions, v)
			}
			r.mu.Unlock()
		}
	}()

	return r
}

func (r *recorder) snapshotFrames() []domain.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Frame, len(r.frames))
	copy(out, r.frames)

	return out
}

func (r *recorder) snapshotStatuses() []connectors.ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]connectors.ConnectionStatus, len(r.statuses))
	copy(out, r.statuses)

	return out
}

func (r *recorder) snapshotMessages() []connectors.StatusMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]connectors.StatusMessage, len(r.messages))
	copy(out, r.messages)

	return out
}

func (r *recorder) snapshotSessions() []connectors.ReplaySessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]connectors.ReplaySessionEvent, len(r.sessions))
	copy(out, r.sessions)

	return out
}

func (r *recorder) dataFrames() []domain.Frame {
	var out []domain.Frame
	for _, f := range r.snapshotFrames() {
		if f.SequenceID > 0 {
			out = append(out, f)
		}
	}

	return out
}

func (r *recorder) countState(state connectors.ConnectionState) int {
	n := 0
	for _, st := range r.snapshotStatuses() {
		if st.State == state {
			n++
		}
	}

	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() Options {
	return Options{
		UpdateRate:    5 * time.Millisecond,
		ReconnectRate: 20 * time.Millisecond,
		RetryStep:     2 * time.Millisecond,
		Source:        "test",
		Target:        "fake",
	}
}

// newHarness wires a service to a fresh bus and stops both on cleanup.
func newHarness(t *testing.T, adapter Adapter, opts Options) (*Service, *recorder) {
	t.Helper()

	b := bus.New(quietLogger())
	rec := newRecorder(t, b)
	svc := New(quietLogger(), b, adapter, opts)
	t.Cleanup(func() {
		if svc.IsRunning() {
			svc.Stop()
		}
		b.Close()
		<-rec.done
	})

	return svc, rec
}
