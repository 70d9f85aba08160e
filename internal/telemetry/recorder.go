package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/history"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/virtuaplant-core/internal/simulation"
)

// WebSocket event types.
const (
	EventTagsChanged   = "tags.changed"
	EventFillCompleted = "fill.completed"
)

// DefaultQueueSize is about four seconds of frames at 60 ticks/s.
const DefaultQueueSize = 256

// sinkTimeout bounds a single history write.
const sinkTimeout = 2 * time.Second

// Publisher is the MQTT side of the recorder.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
}

// PointWriter is the time-series side of the recorder.
type PointWriter interface {
	WriteTags(siteID string, fields map[string]any, at time.Time)
	WriteFillCycle(siteID, eventID string, triggerID uint64, duration time.Duration, at time.Time)
}

// Broadcaster pushes events to live clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Config holds the recorder's sinks. Nil sinks are skipped.
type Config struct {
	SiteID    string
	QueueSize int

	MQTT    Publisher
	Influx  PointWriter
	History history.Repository
	Hub     Broadcaster
	Logger  Logger

	// NewID issues fill event IDs. Default: uuid.NewString.
	NewID func() string
}

// TagsMessage is the payload for tag snapshots on MQTT and WebSocket.
type TagsMessage struct {
	Time        time.Time              `json:"time"`
	Tags        control.Tags           `json:"tags"`
	Observation simulation.Observation `json:"observation"`
}

// Stats holds recorder counters.
type Stats struct {
	Frames     uint64 `json:"frames"`
	Dropped    uint64 `json:"dropped"`
	TagChanges uint64 `json:"tag_changes"`
	Fills      uint64 `json:"fills"`
	SinkErrors uint64 `json:"sink_errors"`
}

// Ensure Recorder implements control.Observer.
var _ control.Observer = (*Recorder)(nil)

// Recorder is a control.Observer that forwards frames to the sinks.
//
// Thread Safety: Observe and Stats are safe from any goroutine. Run must be
// called once.
type Recorder struct {
	cfg   Config
	queue chan control.Frame

	// Owned by the Run goroutine.
	last    control.Tags
	hasLast bool
	failing map[string]bool

	frames     atomic.Uint64
	dropped    atomic.Uint64
	tagChanges atomic.Uint64
	fills      atomic.Uint64
	sinkErrors atomic.Uint64
}

// NewRecorder creates a recorder. Call Run to start consuming frames.
func NewRecorder(cfg Config) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Recorder{
		cfg:     cfg,
		queue:   make(chan control.Frame, cfg.QueueSize),
		failing: make(map[string]bool),
	}
}

// Observe queues a frame without blocking. A full queue drops the frame.
func (r *Recorder) Observe(f control.Frame) {
	select {
	case r.queue <- f:
	default:
		r.dropped.Add(1)
	}
}

// Run consumes frames until ctx is cancelled, then handles whatever is
// still queued and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case f := <-r.queue:
			r.handle(f)
		case <-ctx.Done():
			for {
				select {
				case f := <-r.queue:
					r.handle(f)
				default:
					return
				}
			}
		}
	}
}

// Stats returns the recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Frames:     r.frames.Load(),
		Dropped:    r.dropped.Load(),
		TagChanges: r.tagChanges.Load(),
		Fills:      r.fills.Load(),
		SinkErrors: r.sinkErrors.Load(),
	}
}

func (r *Recorder) handle(f control.Frame) {
	r.frames.Add(1)

	// Tags are only meaningful when the tick read and actuated the banks.
	if f.Actuated {
		if r.cfg.Influx != nil {
			r.cfg.Influx.WriteTags(r.cfg.SiteID, tagFields(f), f.Time)
		}
		if !r.hasLast || f.Tags != r.last {
			r.last, r.hasLast = f.Tags, true
			r.tagsChanged(f)
		}
	}

	if f.Outcome.Fill != nil {
		r.fillCompleted(*f.Outcome.Fill)
	}
}

func (r *Recorder) tagsChanged(f control.Frame) {
	r.tagChanges.Add(1)
	msg := TagsMessage{Time: f.Time, Tags: f.Tags, Observation: f.Observation}

	if r.cfg.MQTT != nil {
		r.sink("mqtt", r.publish(mqtt.Topics{}.PLCTags(), msg, true))
	}
	if r.cfg.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		r.sink("history", r.cfg.History.RecordTags(ctx, f.Time, f.Tags))
		cancel()
	}
	if r.cfg.Hub != nil {
		r.cfg.Hub.Broadcast(EventTagsChanged, msg)
	}
}

func (r *Recorder) fillCompleted(ev control.FillEvent) {
	r.fills.Add(1)
	rec := history.NewFillRecord(r.cfg.NewID(), ev)

	if r.cfg.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		r.sink("history", r.cfg.History.RecordFill(ctx, rec))
		cancel()
	}
	if r.cfg.MQTT != nil {
		r.sink("mqtt", r.publish(mqtt.Topics{}.FillEvents(), rec, false))
	}
	if r.cfg.Influx != nil {
		r.cfg.Influx.WriteFillCycle(r.cfg.SiteID, rec.ID, ev.TriggerID, ev.Duration(), ev.Completed)
	}
	if r.cfg.Hub != nil {
		r.cfg.Hub.Broadcast(EventFillCompleted, rec)
	}

	r.cfg.Logger.Debug("fill cycle recorded", "id", rec.ID, "trigger_id", ev.TriggerID, "duration_ms", rec.DurationMS)
}

func (r *Recorder) publish(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	if retained {
		return r.cfg.MQTT.PublishRetained(topic, payload)
	}
	return r.cfg.MQTT.PublishEvent(topic, payload)
}

// sink counts a sink result and logs only when a sink starts or stops failing.
func (r *Recorder) sink(name string, err error) {
	if err != nil {
		r.sinkErrors.Add(1)
		if !r.failing[name] {
			r.failing[name] = true
			r.cfg.Logger.Warn("telemetry sink failing", "sink", name, "error", err)
		}
		return
	}
	if r.failing[name] {
		r.failing[name] = false
		r.cfg.Logger.Info("telemetry sink recovered", "sink", name)
	}
}

// tagFields flattens a frame into time-series fields.
func tagFields(f control.Frame) map[string]any {
	return map[string]any{
		"run":        f.Tags.Run,
		"level":      f.Tags.Level,
		"contact":    f.Tags.Contact,
		"motor":      f.Tags.Motor,
		"nozzle":     f.Tags.Nozzle,
		"never_stop": int64(f.Tags.Mode),
		"bottles":    int64(f.Observation.Bottles),
		"liquid":     int64(f.Observation.Liquid),
		"spilled":    int64(f.Observation.Spilled),
	}
}
