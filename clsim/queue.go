package clsim

import (
	"github.com/pkg/errors"

	"github.com/gomlx/gocl/cl"
)

type event struct {
	done chan struct{}
	err  error
}

var _ cl.Event = (*event)(nil)

func (e *event) Await() error {
	<-e.done
	return e.err
}

func (e *event) Release() error { return nil }

func newEvent() *event {
	return &event{done: make(chan struct{})}
}

type queueOp struct {
	run      func() error
	ev       *event
	retained []*mem
}

// queue is an in-order command queue backed by a single worker goroutine:
// submission order is execution order, and completion is genuinely
// asynchronous relative to the enqueueing thread.
type queue struct {
	context  *context
	ops      chan queueOp
	released bool
}

var _ cl.Queue = (*queue)(nil)

func newQueue(c *context) *queue {
	q := &queue{
		context: c,
		ops:     make(chan queueOp, 64),
	}
	go q.worker()
	return q
}

func (q *queue) worker() {
	for op := range q.ops {
		err := op.run()
		for _, m := range op.retained {
			m.release()
		}
		op.ev.err = err
		close(op.ev.done)
		if err != nil && q.context.opts.Notify != nil {
			q.context.opts.Notify(err.Error())
		}
	}
}

// submit queues one operation. The retained mems stay referenced until the
// operation completes, mirroring OpenCL's retain-on-enqueue semantics.
func (q *queue) submit(retained []*mem, run func() error) (cl.Event, error) {
	q.context.mu.Lock()
	if q.released {
		q.context.mu.Unlock()
		return nil, cl.ErrReleased
	}
	for _, m := range retained {
		m.retain()
	}
	ev := newEvent()
	q.ops <- queueOp{run: run, ev: ev, retained: retained}
	q.context.mu.Unlock()
	return ev, nil
}

func (q *queue) EnqueueRead(src cl.Mem, srcOffset int, dst []byte) (cl.Event, error) {
	m, ok := src.(*mem)
	if !ok {
		return nil, errors.Errorf("clsim: EnqueueRead with foreign cl.Mem of type %T", src)
	}
	if srcOffset < 0 || srcOffset+len(dst) > m.Size() {
		return nil, errors.Errorf("clsim: EnqueueRead of [%d, %d) out of range of buffer size %d",
			srcOffset, srcOffset+len(dst), m.Size())
	}
	return q.submit([]*mem{m}, func() error {
		copy(dst, m.data()[srcOffset:])
		return nil
	})
}

func (q *queue) EnqueueWrite(dst cl.Mem, dstOffset int, src []byte) (cl.Event, error) {
	m, ok := dst.(*mem)
	if !ok {
		return nil, errors.Errorf("clsim: EnqueueWrite with foreign cl.Mem of type %T", dst)
	}
	if dstOffset < 0 || dstOffset+len(src) > m.Size() {
		return nil, errors.Errorf("clsim: EnqueueWrite of [%d, %d) out of range of buffer size %d",
			dstOffset, dstOffset+len(src), m.Size())
	}
	return q.submit([]*mem{m}, func() error {
		copy(m.data()[dstOffset:], src)
		return nil
	})
}

func (q *queue) EnqueueCopy(src, dst cl.Mem, srcOffset, dstOffset, n int) (cl.Event, error) {
	srcMem, ok := src.(*mem)
	if !ok {
		return nil, errors.Errorf("clsim: EnqueueCopy with foreign cl.Mem of type %T", src)
	}
	dstMem, ok := dst.(*mem)
	if !ok {
		return nil, errors.Errorf("clsim: EnqueueCopy with foreign cl.Mem of type %T", dst)
	}
	if n < 0 || srcOffset < 0 || srcOffset+n > srcMem.Size() {
		return nil, errors.Errorf("clsim: EnqueueCopy source range [%d, %d) out of range of buffer size %d",
			srcOffset, srcOffset+n, srcMem.Size())
	}
	if dstOffset < 0 || dstOffset+n > dstMem.Size() {
		return nil, errors.Errorf("clsim: EnqueueCopy destination range [%d, %d) out of range of buffer size %d",
			dstOffset, dstOffset+n, dstMem.Size())
	}
	return q.submit([]*mem{srcMem, dstMem}, func() error {
		copy(dstMem.data()[dstOffset:dstOffset+n], srcMem.data()[srcOffset:])
		return nil
	})
}

func (q *queue) EnqueueFill(dst cl.Mem, pattern []byte, offset, n int) (cl.Event, error) {
	m, ok := dst.(*mem)
	if !ok {
		return nil, errors.Errorf("clsim: EnqueueFill with foreign cl.Mem of type %T", dst)
	}
	if len(pattern) == 0 {
		return nil, errors.New("clsim: EnqueueFill with empty pattern")
	}
	if n <= 0 || n%len(pattern) != 0 {
		return nil, errors.Errorf("clsim: EnqueueFill size %d is not a positive multiple of pattern size %d",
			n, len(pattern))
	}
	if offset < 0 || offset+n > m.Size() {
		return nil, errors.Errorf("clsim: EnqueueFill range [%d, %d) out of range of buffer size %d",
			offset, offset+n, m.Size())
	}
	return q.submit([]*mem{m}, func() error {
		data := m.data()
		for pos := offset; pos < offset+n; pos += len(pattern) {
			copy(data[pos:pos+len(pattern)], pattern)
		}
		return nil
	})
}

func (q *queue) EnqueueNDRange(k cl.Kernel, workDim int, global, local [3]int) (cl.Event, error) {
	simKernel, ok := k.(*kernel)
	if !ok {
		return nil, errors.Errorf("clsim: EnqueueNDRange with foreign cl.Kernel of type %T", k)
	}
	if workDim < 1 || workDim > 3 {
		return nil, errors.Errorf("clsim: EnqueueNDRange with work dimension %d, want 1 to 3", workDim)
	}
	limits := q.context.device.MaxWorkItemSizes()
	for dim := 0; dim < workDim; dim++ {
		if global[dim] < 1 || local[dim] < 1 {
			return nil, errors.Errorf("clsim: EnqueueNDRange with non-positive shape component %d", dim)
		}
		if local[dim] > limits[dim] {
			return nil, errors.Errorf("clsim: local work size %d exceeds device limit %d in dimension %d",
				local[dim], limits[dim], dim)
		}
		if global[dim]%local[dim] != 0 {
			return nil, errors.Errorf("clsim: global size %d not divisible by local size %d in dimension %d",
				global[dim], local[dim], dim)
		}
	}
	args, err := simKernel.snapshotArgs()
	if err != nil {
		return nil, err
	}
	var retained []*mem
	for _, a := range args {
		if a.Kind == ArgMem {
			retained = append(retained, a.mem)
		}
	}
	inv := &Invocation{Args: args, WorkDim: workDim, Global: global, Local: local}
	name := simKernel.name
	fn := simKernel.fn
	return q.submit(retained, func() error {
		// Local scratch is materialized per dispatch.
		for _, a := range inv.Args {
			if a.Kind == ArgLocal {
				a.value = make([]byte, a.LocalSize)
			}
		}
		if err := fn(inv); err != nil {
			return errors.WithMessagef(err, "clsim: kernel %q failed", name)
		}
		return nil
	})
}

func (q *queue) Flush() error {
	q.context.mu.Lock()
	defer q.context.mu.Unlock()
	if q.released {
		return cl.ErrReleased
	}
	return nil
}

func (q *queue) Finish() error {
	// An empty marker operation: the queue is in-order, so once the marker
	// completes everything enqueued before it has too.
	ev, err := q.submit(nil, func() error { return nil })
	if err != nil {
		return err
	}
	return ev.Await()
}

func (q *queue) Release() error {
	q.context.mu.Lock()
	defer q.context.mu.Unlock()
	if q.released {
		return cl.ErrReleased
	}
	q.released = true
	close(q.ops)
	return nil
}
