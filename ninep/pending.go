package ninep

import (
	"context"
	"io"
	"sync"
)

// Pending is the broadcast fan-out behind a virtual file used for
// streaming events or data to every reader as it becomes available,
// rather than serving fixed contents. It mirrors pending_write,
// pending_respond, pending_clunk and pending_flush from srv_util.cc: each
// subscribed Fid gets its own FIFO queue; a Tread against a pending fid
// is answered immediately if data is already queued for it, or parked
// until either data arrives, the fid is clunked, or the request's own
// context is cancelled by a Tflush.
//
// Pending implements FileHandle so it can be returned directly from a
// FileSystem's OpenFile/CreateFile; a zero Pending is ready to use.
type Pending struct {
	mu      sync.Mutex
	queues  map[Fid][][]byte
	waiters map[Fid]chan pendingResult
}

type pendingResult struct {
	data        []byte
	interrupted bool
}

func NewPending() *Pending {
	return &Pending{
		queues:  make(map[Fid][][]byte),
		waiters: make(map[Fid]chan pendingResult),
	}
}

func (p *Pending) init() {
	if p.queues == nil {
		p.queues = make(map[Fid][][]byte)
	}
	if p.waiters == nil {
		p.waiters = make(map[Fid]chan pendingResult)
	}
}

// Subscribe registers fid as a recipient of future Write broadcasts,
// equivalent to pending_pushfid. Called from Topen once a pending file is
// opened; safe to call more than once for the same fid.
func (p *Pending) Subscribe(fid Fid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	if _, ok := p.queues[fid]; !ok {
		p.queues[fid] = nil
	}
}

// Write fans dat out to every subscribed fid, equivalent to
// pending_write: a fid with a Tread currently parked receives its copy
// immediately, every other subscriber gets it queued for its next Read.
func (p *Pending) Write(dat []byte) {
	if len(dat) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	for fid := range p.queues {
		cp := make([]byte, len(dat))
		copy(cp, dat)
		if w, ok := p.waiters[fid]; ok {
			delete(p.waiters, fid)
			w <- pendingResult{data: cp}
			continue
		}
		p.queues[fid] = append(p.queues[fid], cp)
	}
}

// ReadPending answers a Tread against fid, equivalent to pending_respond:
// queued data is returned immediately, otherwise the call blocks until
// Write delivers data, ClunkPending interrupts it, or ctx is cancelled.
func (p *Pending) ReadPending(ctx context.Context, fid Fid) (data []byte, interrupted bool, err error) {
	p.mu.Lock()
	p.init()
	if q := p.queues[fid]; len(q) > 0 {
		data = q[0]
		p.queues[fid] = q[1:]
		p.mu.Unlock()
		return data, false, nil
	}
	w := make(chan pendingResult, 1)
	p.waiters[fid] = w
	p.mu.Unlock()

	select {
	case r := <-w:
		return r.data, r.interrupted, nil
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.waiters, fid)
		p.mu.Unlock()
		return nil, false, ctx.Err()
	}
}

// ClunkPending unsubscribes fid and interrupts any Tread currently
// parked on it, equivalent to pending_clunk. Clunking a fid with no
// parked request, or one never subscribed, is always a safe no-op: the
// loop-local-dereference bug in the original is not reproduced.
func (p *Pending) ClunkPending(fid Fid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	delete(p.queues, fid)
	if w, ok := p.waiters[fid]; ok {
		delete(p.waiters, fid)
		w <- pendingResult{interrupted: true}
	}
}

// ReadAt always returns io.EOF: a pending file is never read through the
// plain FileHandle path, only through ReadPending (see PendingFileHandle
// in handlers.go), so this only matters if a caller bypasses Handle9P.
func (p *Pending) ReadAt(b []byte, off int64) (int, error) {
	return 0, io.EOF
}

// WriteAt broadcasts b to every subscriber, equivalent to a
// pending_write call triggered by a Twrite against the pending file
// itself (e.g. an application appending an event for fan-out).
func (p *Pending) WriteAt(b []byte, off int64) (int, error) {
	p.Write(b)
	return len(b), nil
}

func (p *Pending) Sync() error  { return nil }
func (p *Pending) Close() error { return nil }

var _ FileHandle = (*Pending)(nil)
var _ PendingFileHandle = (*Pending)(nil)
