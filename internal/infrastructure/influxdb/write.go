package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the plant. Both carry a "site" tag.
const (
	MeasurementTags      = "plc_tags"
	MeasurementFillCycle = "fill_cycle"
)

// WriteTags queues one plc_tags point. fields are the tag values of one tick
// plus the line counters (bottles, liquid, spilled).
func (c *Client) WriteTags(siteID string, fields map[string]any, at time.Time) {
	c.write(tagsPoint(siteID, fields, at))
}

// WriteFillCycle queues one fill_cycle point. eventID is the same ID the
// history row and the MQTT event carry.
func (c *Client) WriteFillCycle(siteID, eventID string, triggerID uint64, duration time.Duration, at time.Time) {
	c.write(fillCyclePoint(siteID, eventID, triggerID, duration, at))
}

func tagsPoint(siteID string, fields map[string]any, at time.Time) *write.Point {
	return write.NewPoint(MeasurementTags, map[string]string{"site": siteID}, fields, at)
}

func fillCyclePoint(siteID, eventID string, triggerID uint64, duration time.Duration, at time.Time) *write.Point {
	return write.NewPoint(MeasurementFillCycle,
		map[string]string{"site": siteID},
		map[string]any{
			"event_id":    eventID,
			"trigger_id":  triggerID,
			"duration_ms": duration.Milliseconds(),
		},
		at,
	)
}
