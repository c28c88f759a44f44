package warmup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/ragd/internal/domain"
	domwarmup "github.com/kailas-cloud/ragd/internal/domain/warmup"
)

// --- Mocks ---

type mockModel struct {
	mu    sync.Mutex
	errs  []error // per call; last one repeats
	calls int
	last  domain.GenerationRequest
}

func (m *mockModel) Generate(_ context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = req
	if len(m.errs) == 0 {
		return domain.GenerationResult{Text: "hi"}, nil
	}
	i := m.calls - 1
	if i >= len(m.errs) {
		i = len(m.errs) - 1
	}
	if m.errs[i] != nil {
		return domain.GenerationResult{}, m.errs[i]
	}
	return domain.GenerationResult{Text: "hi"}, nil
}

func (m *mockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingWait struct {
	waits []time.Duration
	err   error
}

func (r *recordingWait) wait(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

func newTestMachine(model LanguageModel, cfg Config) (*Machine, *recordingWait) {
	m := New(model, cfg, nil)
	w := &recordingWait{}
	m.wait = w.wait
	return m, w
}

var notReady = errors.Join(domain.ErrModelNotReady, errors.New("ModelNotReadyException"))

// --- Tests ---

func TestMachine_InitialCold(t *testing.T) {
	m, _ := newTestMachine(&mockModel{}, Config{})
	if m.State() != domwarmup.Cold {
		t.Errorf("expected Cold, got %s", m.State())
	}
	if m.Readiness().Serving() {
		t.Error("cold machine must not report serving")
	}
}

func TestMachine_NotRequiredSkipsModel(t *testing.T) {
	model := &mockModel{}
	m, _ := newTestMachine(model, Config{Required: false})

	if got := m.Start(context.Background()); got != domwarmup.Ready {
		t.Fatalf("expected Ready, got %s", got)
	}
	if model.Calls() != 0 {
		t.Errorf("model invoked %d times, expected 0", model.Calls())
	}
}

func TestMachine_SuccessFirstAttempt(t *testing.T) {
	model := &mockModel{}
	m, w := newTestMachine(model, Config{Required: true})

	if got := m.Start(context.Background()); got != domwarmup.Ready {
		t.Fatalf("expected Ready, got %s", got)
	}
	if model.Calls() != 1 {
		t.Errorf("calls = %d", model.Calls())
	}
	if len(w.waits) != 0 {
		t.Errorf("unexpected backoff %v", w.waits)
	}
	if model.last.Prompt != DefaultPrompt || model.last.MaxTokens != 50 {
		t.Errorf("unexpected warm-up request %+v", model.last)
	}
}

func TestMachine_RetriesThenReady(t *testing.T) {
	model := &mockModel{errs: []error{notReady, notReady, nil}}
	m, w := newTestMachine(model, Config{Required: true})

	if got := m.Start(context.Background()); got != domwarmup.Ready {
		t.Fatalf("expected Ready, got %s", got)
	}
	if model.Calls() != 3 {
		t.Errorf("calls = %d, want 3", model.Calls())
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second}
	if len(w.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", w.waits, want)
	}
	for i := range want {
		if w.waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, w.waits[i], want[i])
		}
	}
}

func TestMachine_AlwaysNotReadyDegrades(t *testing.T) {
	model := &mockModel{errs: []error{notReady}}
	m, w := newTestMachine(model, Config{Required: true})

	if got := m.Start(context.Background()); got != domwarmup.Degraded {
		t.Fatalf("expected Degraded, got %s", got)
	}
	if model.Calls() != 3 {
		t.Errorf("calls = %d, want exactly 3", model.Calls())
	}
	var total time.Duration
	for _, d := range w.waits {
		total += d
	}
	if total != 60*time.Second {
		t.Errorf("cumulative backoff = %v, want 60s", total)
	}

	r := m.Readiness()
	if r.Attempts != 3 || r.LastError == "" || !r.Required {
		t.Errorf("unexpected readiness %+v", r)
	}

	// further triggers are no-ops while Degraded
	if got := m.Start(context.Background()); got != domwarmup.Degraded {
		t.Errorf("expected Degraded to stick, got %s", got)
	}
	if model.Calls() != 3 {
		t.Errorf("Start after Degraded invoked the model: calls = %d", model.Calls())
	}
}

func TestMachine_NonTransientErrorDegradesImmediately(t *testing.T) {
	model := &mockModel{errs: []error{errors.Join(domain.ErrGenerationFailed, errors.New("AccessDenied"))}}
	m, w := newTestMachine(model, Config{Required: true})

	if got := m.Start(context.Background()); got != domwarmup.Degraded {
		t.Fatalf("expected Degraded, got %s", got)
	}
	if model.Calls() != 1 || len(w.waits) != 0 {
		t.Errorf("calls = %d waits = %v", model.Calls(), w.waits)
	}
}

func TestMachine_StartIdempotentAfterReady(t *testing.T) {
	model := &mockModel{}
	m, _ := newTestMachine(model, Config{Required: true})

	m.Start(context.Background())
	m.Start(context.Background())
	if model.Calls() != 1 {
		t.Errorf("calls = %d, want 1", model.Calls())
	}
	if m.Rearm() {
		t.Error("Rearm must fail outside Degraded")
	}
}

func TestMachine_Rearm(t *testing.T) {
	model := &mockModel{errs: []error{notReady, notReady, notReady, nil}}
	m, _ := newTestMachine(model, Config{Required: true})

	if got := m.Start(context.Background()); got != domwarmup.Degraded {
		t.Fatalf("expected Degraded, got %s", got)
	}
	if !m.Rearm() {
		t.Fatal("Rearm from Degraded should succeed")
	}
	if m.State() != domwarmup.Cold {
		t.Fatalf("expected Cold after rearm, got %s", m.State())
	}
	if got := m.Start(context.Background()); got != domwarmup.Ready {
		t.Fatalf("expected Ready after rearm, got %s", got)
	}
	if m.Readiness().Attempts != 1 {
		t.Errorf("attempts should reset on rerun, got %d", m.Readiness().Attempts)
	}
}

func TestMachine_CancelledWaitDegrades(t *testing.T) {
	model := &mockModel{errs: []error{notReady}}
	m, w := newTestMachine(model, Config{Required: true})
	w.err = context.Canceled

	if got := m.Start(context.Background()); got != domwarmup.Degraded {
		t.Fatalf("expected Degraded, got %s", got)
	}
	if model.Calls() != 1 {
		t.Errorf("calls = %d, want 1", model.Calls())
	}
}

func TestMachine_ConcurrentStartRunsOnce(t *testing.T) {
	model := &mockModel{}
	m, _ := newTestMachine(model, Config{Required: true})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Start(context.Background())
			_ = m.Readiness()
		}()
	}
	wg.Wait()

	if model.Calls() != 1 {
		t.Errorf("calls = %d, want 1", model.Calls())
	}
	if m.State() != domwarmup.Ready {
		t.Errorf("state = %s", m.State())
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
