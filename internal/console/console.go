package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// DefaultInterval is the polling period.
const DefaultInterval = time.Second

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Status is what the operator sees after one poll.
// Every field except Polled is zero while offline.
type Status struct {
	Online bool `json:"online"`

	BottleInPosition bool          `json:"bottle_in_position"`
	LevelHit         bool          `json:"level_hit"`
	MotorOn          bool          `json:"motor_on"`
	NozzleOpen       bool          `json:"nozzle_open"`
	Running          bool          `json:"running"`
	Mode             register.Mode `json:"never_stop"`

	Polled time.Time `json:"polled"`
}

// Lines renders the status as label/value rows.
func (s Status) Lines() []string {
	if !s.Online {
		return []string{"Connection:         OFFLINE"}
	}
	yesNo := func(v bool, yes, no string) string {
		if v {
			return yes
		}
		return no
	}
	return []string{
		"Connection:         ONLINE",
		"Bottle in position: " + yesNo(s.BottleInPosition, "YES", "NO"),
		"Level hit:          " + yesNo(s.LevelHit, "YES", "NO"),
		"Motor:              " + yesNo(s.MotorOn, "ON", "OFF"),
		"Nozzle:             " + yesNo(s.NozzleOpen, "OPEN", "CLOSED"),
		"Process:            " + yesNo(s.Running, "RUNNING", "STOPPED"),
		"Never stop:         " + strings.ToUpper(s.Mode.String()),
	}
}

// Config holds console settings.
type Config struct {
	// Interval is the polling period. Default: 1s.
	Interval time.Duration

	// Logger is optional.
	Logger Logger

	now func() time.Time
}

// Console polls one PLC bank.
//
// Thread Safety: All methods are safe for concurrent use.
type Console struct {
	plc      register.Accessor
	interval time.Duration
	logger   Logger
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

// New creates a console over plc. It starts offline until the first poll.
func New(plc register.Accessor, cfg Config) *Console {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Console{
		plc:      plc,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		now:      cfg.now,
	}
}

// Poll reads both PLC blocks once and updates the status.
func (c *Console) Poll() Status {
	st := Status{Polled: c.now()}

	ro, err := c.plc.ReadRange(register.ROBase, register.BlockSize)
	if err == nil {
		var rw []uint16
		rw, err = c.plc.ReadRange(register.RWBase, register.BlockSize)
		if err == nil {
			st.Online = true
			st.BottleInPosition = ro[register.TagContact] == 1
			st.LevelHit = ro[register.TagLevel] == 1
			st.MotorOn = ro[register.TagMotor] == 1
			st.NozzleOpen = ro[register.TagNozzle] == 1
			st.Running = rw[register.TagRun] == 1
			// Out-of-domain values read as Off, like the control loop does.
			st.Mode, _ = register.ParseMode(rw[register.TagNeverStop])
		}
	}

	c.mu.Lock()
	was := c.status.Online
	c.status = st
	c.mu.Unlock()

	switch {
	case was && !st.Online:
		c.logger.Warn("plc offline", "error", err)
	case !was && st.Online:
		c.logger.Info("plc online")
	}
	return st
}

// Status returns the result of the last poll.
func (c *Console) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Run polls immediately and then every interval until ctx is cancelled,
// handing each status to fn when fn is not nil.
func (c *Console) Run(ctx context.Context, fn func(Status)) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		st := c.Poll()
		if fn != nil {
			fn(st)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetRun starts or stops the process.
func (c *Console) SetRun(on bool) error {
	if err := c.plc.Write(register.RWBase+register.TagRun, register.Bool(on)); err != nil {
		return fmt.Errorf("setting run=%t: %w", on, err)
	}
	c.logger.Info("process run set", "run", on)
	return nil
}
