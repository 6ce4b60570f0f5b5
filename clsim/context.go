package clsim

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/gomlx/gocl/cl"
)

type context struct {
	device   *device
	opts     cl.ContextOptions
	mu       sync.Mutex
	released bool
}

var _ cl.Context = (*context)(nil)

func (c *context) valid() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return cl.ErrReleased
	}
	return nil
}

func (c *context) NewQueue() (cl.Queue, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	return newQueue(c), nil
}

func (c *context) NewBuffer(sizeBytes int) (cl.Mem, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	if sizeBytes < 0 {
		return nil, errors.Errorf("clsim: NewBuffer with negative size %d", sizeBytes)
	}
	return newMem(sizeBytes), nil
}

// kernelDeclRe matches OpenCL C kernel entry-point declarations. The
// simulator doesn't compile the body; the declaration names select which
// registered implementations the program exposes.
var kernelDeclRe = regexp.MustCompile(`(?:__kernel|kernel)\s+void\s+([A-Za-z_]\w*)\s*\(`)

func (c *context) BuildProgram(source string) (cl.Program, error) {
	if err := c.valid(); err != nil {
		return nil, err
	}
	decls := kernelDeclRe.FindAllStringSubmatch(source, -1)
	if len(decls) == 0 {
		return nil, &cl.BuildError{
			Device: c.device.Name(),
			Log:    "clsim: no __kernel declarations found in source\nsource:\n" + source,
		}
	}
	entries := make(map[string]KernelFunc, len(decls))
	var missing []string
	for _, m := range decls {
		name := m[1]
		fn, ok := lookupKernel(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		entries[name] = fn
	}
	if len(missing) > 0 {
		// The analog of a compile error: the simulator has no implementation
		// to back these entry points.
		return nil, &cl.BuildError{
			Device: c.device.Name(),
			Log: fmt.Sprintf("clsim: no registered implementation for kernel(s): %s\n"+
				"use clsim.RegisterKernel to provide one", strings.Join(missing, ", ")),
		}
	}
	return &program{context: c, entries: entries}, nil
}

func (c *context) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return cl.ErrReleased
	}
	c.released = true
	return nil
}

type mem struct {
	mu    sync.Mutex
	bytes []byte
	refs  int
}

var _ cl.Mem = (*mem)(nil)

func newMem(sizeBytes int) *mem {
	return &mem{bytes: make([]byte, sizeBytes), refs: 1}
}

func (m *mem) retain() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs++
}

func (m *mem) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs--
	if m.refs <= 0 {
		m.bytes = nil
	}
}

// data returns the backing storage. The returned slice stays valid while the
// caller holds a reference.
func (m *mem) data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes
}

func (m *mem) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bytes)
}

func (m *mem) RefCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs < 0 {
		return 0
	}
	return m.refs
}

func (m *mem) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs <= 0 {
		return cl.ErrReleased
	}
	m.refs--
	if m.refs == 0 {
		m.bytes = nil
	}
	return nil
}

type program struct {
	context  *context
	entries  map[string]KernelFunc
	mu       sync.Mutex
	released bool
}

var _ cl.Program = (*program)(nil)

func (p *program) NewKernel(name string) (cl.Kernel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, cl.ErrReleased
	}
	fn, ok := p.entries[name]
	if !ok {
		return nil, errors.Errorf("clsim: kernel %q not found in program (have: %s)",
			name, strings.Join(programEntryNames(p.entries), ", "))
	}
	return &kernel{program: p, name: name, fn: fn}, nil
}

func programEntryNames(entries map[string]KernelFunc) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	return names
}

func (p *program) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return cl.ErrReleased
	}
	p.released = true
	return nil
}

type kernel struct {
	program *program
	name    string
	fn      KernelFunc

	mu       sync.Mutex
	args     []*Arg
	released bool
}

var _ cl.Kernel = (*kernel)(nil)

func (k *kernel) setArg(index int, arg *Arg) error {
	if index < 0 {
		return errors.Errorf("clsim: negative kernel argument index %d", index)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return cl.ErrReleased
	}
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = arg
	return nil
}

func (k *kernel) SetArgMem(index int, m cl.Mem) error {
	simMem, ok := m.(*mem)
	if !ok {
		return errors.Errorf("clsim: SetArgMem with foreign cl.Mem of type %T", m)
	}
	return k.setArg(index, &Arg{Kind: ArgMem, mem: simMem})
}

func (k *kernel) SetArgLocal(index int, sizeBytes int) error {
	if sizeBytes <= 0 {
		return errors.Errorf("clsim: SetArgLocal with size %d", sizeBytes)
	}
	return k.setArg(index, &Arg{Kind: ArgLocal, LocalSize: sizeBytes})
}

func (k *kernel) SetArgValue(index int, value []byte) error {
	if len(value) == 0 {
		return errors.New("clsim: SetArgValue with empty value")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return k.setArg(index, &Arg{Kind: ArgValue, value: cp})
}

// snapshotArgs copies the current argument bindings for one dispatch, so
// later SetArg calls don't affect in-flight work.
func (k *kernel) snapshotArgs() ([]*Arg, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return nil, cl.ErrReleased
	}
	snapshot := make([]*Arg, len(k.args))
	for ii, a := range k.args {
		if a == nil {
			return nil, errors.Errorf("clsim: kernel %q argument %d not set", k.name, ii)
		}
		cp := *a
		snapshot[ii] = &cp
	}
	return snapshot, nil
}

func (k *kernel) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return cl.ErrReleased
	}
	k.released = true
	k.args = nil
	return nil
}
