package provider

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"

	"sctrace/internal/bpfprog"
	"sctrace/internal/elfsym"
	"sctrace/internal/tracing"
)

// KernelOptions configures a KernelProvider.
type KernelOptions struct {
	RingBufferSize uint32
	// PollTimeout bounds each ReadEvent; zero blocks until an event arrives.
	PollTimeout time.Duration
}

// KernelProvider is the production implementation of Provider
type KernelProvider struct {
	maps     *bpfprog.Maps
	progs    *bpfprog.Programs
	session  *tracing.Session
	reader   *ringbuf.Reader
	sysEnter link.Link
	triggers []link.Link
	poll     time.Duration
	logger   *zap.Logger
}

// NewKernelProvider loads the session into the kernel and attaches the
// filter to every syscall entry. The session starts inactive.
func NewKernelProvider(opts KernelOptions, logger *zap.Logger) (*KernelProvider, error) {
	if opts.RingBufferSize == 0 {
		opts.RingBufferSize = bpfprog.DefaultRingBufferSize
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("remove memlock limit: %w", err)
	}

	maps, err := bpfprog.NewMaps(opts.RingBufferSize)
	if err != nil {
		return nil, fmt.Errorf("create maps: %w", err)
	}

	progs, err := bpfprog.LoadPrograms(maps)
	if err != nil {
		maps.Close()
		return nil, fmt.Errorf("load programs: %w", err)
	}

	provider := &KernelProvider{
		maps:  maps,
		progs: progs,
		session: tracing.NewSession(
			tracing.WithTargetStore(&mapTargetStore{m: maps.Config}),
			tracing.WithStateStore(&mapStateStore{m: maps.State, logger: logger}),
		),
		poll:   opts.PollTimeout,
		logger: logger,
	}

	// Attach the filter to every syscall entry
	sysEnter, err := link.Tracepoint("raw_syscalls", "sys_enter", progs.Filter, nil)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("attach sys_enter tracepoint: %w", err)
	}
	provider.sysEnter = sysEnter

	// Open the ring buffer
	reader, err := ringbuf.NewReader(maps.Events)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("open ring buffer: %w", err)
	}
	provider.reader = reader

	logger.Debug("kernel session loaded",
		zap.Uint32("ring_buffer_size", opts.RingBufferSize),
		zap.Duration("poll_timeout", opts.PollTimeout),
	)
	return provider, nil
}

func (p *KernelProvider) Session() *tracing.Session {
	return p.session
}

// AttachFunction attaches the enter trigger at the symbol's entry and the
// exit trigger on its return. Go binaries get a uprobe on every RET
// instruction instead of a uretprobe, which would corrupt goroutine stacks.
// Nothing stays attached when an error is returned.
func (p *KernelProvider) AttachFunction(binary, symbol string, pid int) error {
	offsets, err := exitOffsets(binary, symbol)
	if err != nil {
		return err
	}

	ex, err := link.OpenExecutable(binary)
	if err != nil {
		return fmt.Errorf("open executable %s: %w", binary, err)
	}

	var attached []link.Link
	fail := func(err error) error {
		if cerr := closeAll(attached); cerr != nil {
			p.logger.Warn("detaching partial probes", zap.String("symbol", symbol), zap.Error(cerr))
		}
		return err
	}

	enter, err := ex.Uprobe(symbol, p.progs.Enter, &link.UprobeOptions{PID: pid})
	if err != nil {
		return fail(fmt.Errorf("attach enter probe to %s: %w", symbol, err))
	}
	attached = append(attached, enter)

	if offsets == nil {
		exit, err := ex.Uretprobe(symbol, p.progs.Exit, &link.UprobeOptions{PID: pid})
		if err != nil {
			return fail(fmt.Errorf("attach exit probe to %s: %w", symbol, err))
		}
		attached = append(attached, exit)
	}
	for _, off := range offsets {
		exit, err := ex.Uprobe(symbol, p.progs.Exit, &link.UprobeOptions{PID: pid, Offset: off})
		if err != nil {
			return fail(fmt.Errorf("attach exit probe to %s+%#x: %w", symbol, off, err))
		}
		attached = append(attached, exit)
	}

	p.triggers = append(p.triggers, attached...)
	p.logger.Debug("attached function probes",
		zap.String("binary", binary),
		zap.String("symbol", symbol),
		zap.Int("ret_probes", len(offsets)),
	)
	return nil
}

// exitOffsets returns the RET offsets to probe for symbol, or nil when the
// binary is not a Go binary and a uretprobe serves as the exit trigger.
func exitOffsets(binary, symbol string) ([]uint64, error) {
	isGo, err := elfsym.IsGoBinary(binary)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", binary, err)
	}
	if !isGo {
		return nil, nil
	}

	offsets, err := elfsym.ReturnOffsets(binary, symbol)
	if err != nil {
		return nil, fmt.Errorf("find RET instructions of %s: %w", symbol, err)
	}
	return offsets, nil
}

func closeAll[C io.Closer](closers []C) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadEvent reads the next event from the ring buffer
func (p *KernelProvider) ReadEvent() (*tracing.SyscallEvent, error) {
	if p.poll > 0 {
		p.reader.SetDeadline(time.Now().Add(p.poll))
	}

	record, err := p.reader.Read()
	if err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrNoEvent
		}
		return nil, fmt.Errorf("reading from ring buffer: %w", err)
	}

	event, err := tracing.DecodeEvent(record.RawSample)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Dropped sums the per-CPU counts of events the filter could not submit.
func (p *KernelProvider) Dropped() (uint64, error) {
	var perCPU []uint64
	if err := p.maps.Drops.Lookup(slotKey, &perCPU); err != nil {
		return 0, fmt.Errorf("read %s map: %w", bpfprog.DropsMapName, err)
	}
	var total uint64
	for _, n := range perCPU {
		total += n
	}
	return total, nil
}

// Close cleans up all resources
func (p *KernelProvider) Close() error {
	var errs []error

	if p.reader != nil {
		if err := p.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
	}

	for _, l := range p.triggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trigger link: %w", err))
		}
	}
	p.triggers = nil

	if p.sysEnter != nil {
		if err := p.sysEnter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sys_enter link: %w", err))
		}
	}

	if p.progs != nil {
		if err := p.progs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close programs: %w", err))
		}
	}

	if p.maps != nil {
		if err := p.maps.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close maps: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing provider: %v", errs)
	}

	return nil
}
