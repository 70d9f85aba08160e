package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/history"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/virtuaplant-core/internal/register"
	"github.com/nerrad567/virtuaplant-core/internal/simulation"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	return p.record(topic, payload, true)
}

func (p *fakePublisher) PublishEvent(topic string, payload []byte) error {
	return p.record(topic, payload, false)
}

func (p *fakePublisher) record(topic string, payload []byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: payload, retained: retained})
	return nil
}

type fakeWriter struct {
	tags  int
	fills []string
}

func (w *fakeWriter) WriteTags(string, map[string]any, time.Time) { w.tags++ }

func (w *fakeWriter) WriteFillCycle(_ string, eventID string, _ uint64, _ time.Duration, _ time.Time) {
	w.fills = append(w.fills, eventID)
}

type fakeHub struct {
	events []string
}

func (h *fakeHub) Broadcast(channel string, _ any) { h.events = append(h.events, channel) }

type fakeRepo struct {
	tags  []control.Tags
	fills []history.FillRecord
	err   error
}

func (r *fakeRepo) RecordTags(_ context.Context, _ time.Time, tags control.Tags) error {
	if r.err != nil {
		return r.err
	}
	r.tags = append(r.tags, tags)
	return nil
}

func (r *fakeRepo) RecordFill(_ context.Context, rec history.FillRecord) error {
	if r.err != nil {
		return r.err
	}
	r.fills = append(r.fills, rec)
	return nil
}

func (r *fakeRepo) TagHistory(context.Context, int) ([]history.TagRecord, error) { return nil, nil }
func (r *fakeRepo) Fills(context.Context, int) ([]history.FillRecord, error)     { return nil, nil }
func (r *fakeRepo) Prune(context.Context, time.Duration) (int64, error)          { return 0, nil }

type countingLogger struct {
	warns, infos int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  { l.infos++ }
func (l *countingLogger) Warn(string, ...any)  { l.warns++ }
func (l *countingLogger) Error(string, ...any) {}

type sinks struct {
	pub  *fakePublisher
	inf  *fakeWriter
	hub  *fakeHub
	repo *fakeRepo
}

func newTestRecorder(queue int) (*Recorder, sinks) {
	s := sinks{pub: &fakePublisher{}, inf: &fakeWriter{}, hub: &fakeHub{}, repo: &fakeRepo{}}
	n := 0
	r := NewRecorder(Config{
		SiteID:    "line-1",
		QueueSize: queue,
		MQTT:      s.pub,
		Influx:    s.inf,
		History:   s.repo,
		Hub:       s.hub,
		NewID: func() string {
			n++
			return fmt.Sprintf("fill-%d", n)
		},
	})
	return r, s
}

// drain processes everything queued and returns.
func drain(r *Recorder) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
}

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func frame(offset time.Duration, tags control.Tags) control.Frame {
	return control.Frame{
		Time:        t0.Add(offset),
		Tags:        tags,
		Observation: simulation.Observation{Bottles: 1},
		Actuated:    true,
	}
}

func TestRecorder_TagChanges(t *testing.T) {
	r, s := newTestRecorder(16)

	running := control.Tags{Run: true, Motor: true}
	stopped := control.Tags{Run: true, Contact: true, Nozzle: true}

	r.Observe(frame(0, running))
	r.Observe(frame(16*time.Millisecond, running))
	r.Observe(frame(32*time.Millisecond, stopped))
	r.Observe(control.Frame{Time: t0.Add(48 * time.Millisecond)}) // not actuated
	r.Observe(frame(64*time.Millisecond, stopped))
	drain(r)

	if s.inf.tags != 4 {
		t.Errorf("influx tag points = %d, want 4", s.inf.tags)
	}
	if len(s.repo.tags) != 2 {
		t.Fatalf("history tag rows = %d, want 2", len(s.repo.tags))
	}
	if s.repo.tags[1] != stopped {
		t.Errorf("second row = %+v, want %+v", s.repo.tags[1], stopped)
	}
	if len(s.hub.events) != 2 || s.hub.events[0] != EventTagsChanged {
		t.Errorf("hub events = %v, want two %s", s.hub.events, EventTagsChanged)
	}

	if len(s.pub.msgs) != 2 {
		t.Fatalf("mqtt messages = %d, want 2", len(s.pub.msgs))
	}
	msg := s.pub.msgs[1]
	if msg.topic != (mqtt.Topics{}).PLCTags() || !msg.retained {
		t.Errorf("mqtt message = %s retained=%v, want retained %s", msg.topic, msg.retained, (mqtt.Topics{}).PLCTags())
	}
	var body TagsMessage
	if err := json.Unmarshal(msg.payload, &body); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if body.Tags != stopped || body.Observation.Bottles != 1 {
		t.Errorf("payload = %+v", body)
	}

	st := r.Stats()
	if st.Frames != 5 || st.TagChanges != 2 || st.Dropped != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestRecorder_FillCompleted(t *testing.T) {
	r, s := newTestRecorder(16)

	f := frame(0, control.Tags{Run: true, Level: true, Motor: true})
	f.Outcome = control.Outcome{
		Transition: control.TransitionCompleted,
		Fill: &control.FillEvent{
			TriggerID: 3,
			Started:   t0.Add(-1500 * time.Millisecond),
			Completed: t0,
		},
	}
	r.Observe(f)
	drain(r)

	if len(s.repo.fills) != 1 {
		t.Fatalf("history fills = %d, want 1", len(s.repo.fills))
	}
	rec := s.repo.fills[0]
	if rec.ID != "fill-1" || rec.TriggerID != 3 || rec.DurationMS != 1500 {
		t.Errorf("fill record = %+v", rec)
	}
	if len(s.inf.fills) != 1 || s.inf.fills[0] != "fill-1" {
		t.Errorf("influx fills = %v, want [fill-1]", s.inf.fills)
	}

	var event *published
	for i := range s.pub.msgs {
		if s.pub.msgs[i].topic == (mqtt.Topics{}).FillEvents() {
			event = &s.pub.msgs[i]
		}
	}
	if event == nil {
		t.Fatal("no fill event published")
	}
	if event.retained {
		t.Error("fill event should not be retained")
	}

	wantHub := []string{EventTagsChanged, EventFillCompleted}
	if len(s.hub.events) != 2 || s.hub.events[0] != wantHub[0] || s.hub.events[1] != wantHub[1] {
		t.Errorf("hub events = %v, want %v", s.hub.events, wantHub)
	}
	if r.Stats().Fills != 1 {
		t.Errorf("Fills = %d, want 1", r.Stats().Fills)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	r, _ := newTestRecorder(2)

	for i := range 5 {
		r.Observe(frame(time.Duration(i)*time.Millisecond, control.Tags{}))
	}
	if got := r.Stats().Dropped; got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}

	drain(r)
	if got := r.Stats().Frames; got != 2 {
		t.Errorf("Frames = %d, want 2", got)
	}
}

func TestRecorder_SinkFailureLoggedOnce(t *testing.T) {
	logger := &countingLogger{}
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	r := NewRecorder(Config{MQTT: pub, Logger: logger})

	r.Observe(frame(0, control.Tags{Run: true}))
	r.Observe(frame(time.Millisecond, control.Tags{Run: false}))
	r.Observe(frame(2*time.Millisecond, control.Tags{Run: true}))
	drain(r)

	if logger.warns != 1 {
		t.Errorf("warnings = %d, want 1", logger.warns)
	}
	if got := r.Stats().SinkErrors; got != 3 {
		t.Errorf("SinkErrors = %d, want 3", got)
	}

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	r.Observe(frame(3*time.Millisecond, control.Tags{Run: false}))
	drain(r)

	if logger.infos != 1 {
		t.Errorf("recovery logs = %d, want 1", logger.infos)
	}
}

func TestRecorder_NoSinks(t *testing.T) {
	r := NewRecorder(Config{})
	f := frame(0, control.Tags{Run: true})
	f.Outcome.Fill = &control.FillEvent{Started: t0, Completed: t0}
	r.Observe(f)
	drain(r)

	if st := r.Stats(); st.Frames != 1 || st.Fills != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestRecorder_HistoryError(t *testing.T) {
	r, s := newTestRecorder(4)
	s.repo.err = errors.New("disk full")

	r.Observe(frame(0, control.Tags{Run: true}))
	drain(r)

	if got := r.Stats().SinkErrors; got != 1 {
		t.Errorf("SinkErrors = %d, want 1", got)
	}
	// Other sinks still receive the change.
	if len(s.hub.events) != 1 {
		t.Errorf("hub events = %d, want 1", len(s.hub.events))
	}
}

func TestTagFields(t *testing.T) {
	f := frame(0, control.Tags{Run: true, Nozzle: true, Mode: register.ModeForceFill})
	f.Observation = simulation.Observation{Bottles: 2, Liquid: 40, Spilled: 3}

	fields := tagFields(f)
	if fields["run"] != true || fields["nozzle"] != true || fields["motor"] != false {
		t.Errorf("bool fields = %v", fields)
	}
	if fields["never_stop"] != int64(2) || fields["liquid"] != int64(40) || fields["spilled"] != int64(3) {
		t.Errorf("int fields = %v", fields)
	}
}
