package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/cyberq/internal/cyberq"
)

type fakeDevice struct {
	mu       sync.Mutex
	store    *cyberq.Store
	temps    []string
	errs     []error
	calls    int
	setErr   error
	setKey   string
	setValue any
	inFlight int
	overlap  bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{store: cyberq.NewStore(nil)}
}

func (f *fakeDevice) enter() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
}

func (f *fakeDevice) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeDevice) Refresh(ctx context.Context) (*cyberq.Store, error) {
	f.enter()
	defer f.leave()
	time.Sleep(time.Millisecond)

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("refresh called without a deadline")
	}

	next := f.store.Clone()
	temp := "2250"
	if i < len(f.temps) {
		temp = f.temps[i]
	}
	if err := next.Accept("COOK_TEMP", temp); err != nil {
		return nil, err
	}
	f.store = next
	return next, nil
}

func (f *fakeDevice) Set(ctx context.Context, key string, value any) (bool, error) {
	f.enter()
	defer f.leave()
	time.Sleep(time.Millisecond)

	f.setKey, f.setValue = key, value
	if f.setErr != nil {
		return false, f.setErr
	}
	next := f.store.Clone()
	if err := next.Accept(key, "2500"); err != nil {
		return false, err
	}
	f.store = next
	return true, nil
}

func (f *fakeDevice) Sensors() *cyberq.Store { return f.store }

func (f *fakeDevice) Identity() cyberq.Identity {
	return cyberq.Identity{Host: "192.168.1.50", SerialNumber: "ABCD"}
}

func TestPoll_Success(t *testing.T) {
	dev := newFakeDevice()
	p := New(dev)

	var got []State
	p.Subscribe(func(s State) { got = append(got, s) })

	s := p.Poll(context.Background())
	if !s.Available || s.Failures != 0 || s.LastError != nil {
		t.Errorf("state = %+v, want available", s)
	}
	if s.Snapshot == nil || !s.Snapshot.Has("COOK_TEMP") {
		t.Fatal("snapshot missing COOK_TEMP")
	}
	if len(s.Changed) != 1 || s.Changed[0] != "COOK_TEMP" {
		t.Errorf("Changed = %v, want [COOK_TEMP]", s.Changed)
	}
	if s.Identity.SerialNumber != "ABCD" {
		t.Errorf("Identity = %+v", s.Identity)
	}
	if len(got) != 1 {
		t.Errorf("subscriber called %d times, want 1", len(got))
	}
	if p.State().LastSuccess.IsZero() {
		t.Error("State().LastSuccess not recorded")
	}
}

func TestPoll_UnchangedSnapshot(t *testing.T) {
	dev := newFakeDevice()
	p := New(dev)

	p.Poll(context.Background())
	s := p.Poll(context.Background())
	if len(s.Changed) != 0 {
		t.Errorf("Changed = %v, want none", s.Changed)
	}
}

func TestPoll_FailureKeepsSnapshot(t *testing.T) {
	dev := newFakeDevice()
	dev.errs = []error{nil, cyberq.NewHTTPError(503, "busy"), cyberq.NewHTTPError(503, "busy"), nil}
	dev.temps = []string{"2250", "", "", "2300"}
	p := New(dev)

	first := p.Poll(context.Background())

	s := p.Poll(context.Background())
	if s.Available {
		t.Error("Available = true after a failed refresh")
	}
	if s.Failures != 1 || !cyberq.IsHTTPError(s.LastError) {
		t.Errorf("Failures/LastError = %d/%v", s.Failures, s.LastError)
	}
	if s.Snapshot != first.Snapshot {
		t.Error("failed refresh replaced the last good snapshot")
	}
	if !s.Stale() {
		t.Error("Stale() = false after a failed refresh")
	}

	s = p.Poll(context.Background())
	if s.Failures != 2 {
		t.Errorf("Failures = %d, want 2", s.Failures)
	}

	s = p.Poll(context.Background())
	if !s.Available || s.Failures != 0 || s.LastError != nil {
		t.Errorf("state after recovery = %+v", s)
	}
	v, _ := s.Snapshot.Get("COOK_TEMP")
	if f, _ := v.Float(); f != 230.0 {
		t.Errorf("COOK_TEMP = %v, want 230.0", f)
	}
}

func TestSet(t *testing.T) {
	dev := newFakeDevice()
	p := New(dev)
	p.Poll(context.Background())

	var published State
	p.Subscribe(func(s State) { published = s })

	if err := p.Set(context.Background(), "COOK_SET", 250); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if dev.setKey != "COOK_SET" || dev.setValue != 250 {
		t.Errorf("device Set(%v, %v)", dev.setKey, dev.setValue)
	}
	if published.Snapshot == nil || !published.Snapshot.Has("COOK_SET") {
		t.Fatal("echoed snapshot not published")
	}
	if len(published.Changed) != 1 || published.Changed[0] != "COOK_SET" {
		t.Errorf("Changed = %v, want [COOK_SET]", published.Changed)
	}
}

func TestSet_DuringPollKeepsEcho(t *testing.T) {
	dev := newFakeDevice()
	p := New(dev)

	var last State
	var lastMu sync.Mutex
	p.Subscribe(func(s State) {
		lastMu.Lock()
		last = s
		lastMu.Unlock()
	})

	// now runs between the device refresh and the state commit. Start a
	// write there and give it the chance to finish before Poll commits.
	setDone := make(chan error, 1)
	var once sync.Once
	p.now = func() time.Time {
		once.Do(func() {
			go func() { setDone <- p.Set(context.Background(), "COOK_SET", 250) }()
			select {
			case err := <-setDone:
				t.Error("Set completed while a poll was still committing")
				setDone <- err
			case <-time.After(50 * time.Millisecond):
			}
		})
		return time.Now()
	}

	p.Poll(context.Background())
	if err := <-setDone; err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if !p.State().Snapshot.Has("COOK_SET") {
		t.Error("poll overwrote the snapshot echoed by a later write")
	}
	lastMu.Lock()
	defer lastMu.Unlock()
	if last.Snapshot == nil || !last.Snapshot.Has("COOK_SET") {
		t.Error("last published state is not the write echo")
	}
}

func TestSet_Error(t *testing.T) {
	dev := newFakeDevice()
	dev.setErr = cyberq.NewEncodeError("COOK_SET", "too hot", cyberq.ErrOutOfRange)
	p := New(dev)

	calls := 0
	p.Subscribe(func(State) { calls++ })

	err := p.Set(context.Background(), "COOK_SET", 900)
	if !errors.Is(err, cyberq.ErrOutOfRange) {
		t.Errorf("Set() error = %v, want ErrOutOfRange", err)
	}
	if calls != 0 {
		t.Error("failed write published a state")
	}
}

func TestUnsubscribe(t *testing.T) {
	p := New(newFakeDevice())

	calls := 0
	unsubscribe := p.Subscribe(func(State) { calls++ })
	p.Poll(context.Background())
	unsubscribe()
	p.Poll(context.Background())

	if calls != 1 {
		t.Errorf("subscriber called %d times, want 1", calls)
	}
}

func TestRefreshAndSetAreSerialized(t *testing.T) {
	dev := newFakeDevice()
	p := New(dev)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Poll(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = p.Set(context.Background(), "COOK_SET", 250)
		}()
	}
	wg.Wait()

	if dev.overlap {
		t.Error("Refresh and Set overlapped on the device")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	dev := newFakeDevice()
	p := New(dev, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		p.deviceMu.Lock()
		calls := dev.calls
		p.deviceMu.Unlock()
		if calls >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d refreshes before deadline", calls)
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestOptions(t *testing.T) {
	p := New(newFakeDevice(), WithInterval(time.Minute), WithTimeout(3*time.Second), WithInterval(0))
	if p.Interval() != time.Minute {
		t.Errorf("Interval() = %v, want 1m", p.Interval())
	}
	if p.timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", p.timeout)
	}
}
