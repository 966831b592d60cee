package fetch

// Status is the process-wide connectivity signal exposed to UI layers.
type Status string

const (
	StatusOK      Status = "ok"
	StatusLimited Status = "limited"
	StatusError   Status = "error"
)

// Status returns the last observed connectivity status.
func (f *Fetcher) Status() Status {
	f.statusMu.Lock()
	defer f.statusMu.Unlock()
	return f.status
}

// Subscribe registers a callback invoked on every status transition. The
// returned function removes the subscription.
func (f *Fetcher) Subscribe(fn func(Status)) func() {
	f.statusMu.Lock()
	id := f.nextSubID
	f.nextSubID++
	if f.subs == nil {
		f.subs = make(map[int]func(Status))
	}
	f.subs[id] = fn
	f.statusMu.Unlock()

	return func() {
		f.statusMu.Lock()
		delete(f.subs, id)
		f.statusMu.Unlock()
	}
}

func (f *Fetcher) setStatus(next Status) {
	f.statusMu.Lock()
	if f.status == next {
		f.statusMu.Unlock()
		return
	}
	f.status = next
	listeners := make([]func(Status), 0, len(f.subs))
	for _, fn := range f.subs {
		listeners = append(listeners, fn)
	}
	f.statusMu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
