package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/virtuaplant-core/internal/audit"
	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/register"
	"github.com/nerrad567/virtuaplant-core/internal/simulation"
)

// TagsResponse is the latest tick as seen by the control loop.
type TagsResponse struct {
	Time        time.Time              `json:"time"`
	Actuated    bool                   `json:"actuated"`
	Tags        control.Tags           `json:"tags"`
	Observation simulation.Observation `json:"observation"`
	Fill        control.FillStatus     `json:"fill"`
	Runner      control.RunnerStats    `json:"runner"`
}

// TagValue is a single tag read live from the PLC bank.
type TagValue struct {
	Tag      string `json:"tag"`
	Address  uint16 `json:"address"`
	Value    uint16 `json:"value"`
	Writable bool   `json:"writable"`
}

// SetTagRequest is the body of PUT /tags/{tag}.
type SetTagRequest struct {
	Value *int `json:"value"`
}

func (s *Server) handleGetTags(w http.ResponseWriter, _ *http.Request) {
	f := s.plant.Latest()
	writeJSON(w, http.StatusOK, TagsResponse{
		Time:        f.Time,
		Actuated:    f.Actuated,
		Tags:        f.Tags,
		Observation: f.Observation,
		Fill:        s.plant.Status(),
		Runner:      s.plant.Stats(),
	})
}

// handleGetTag reads one tag straight from the bank, bypassing the last frame.
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tag")
	tag, ok := register.LookupTag(name)
	if !ok {
		writeRegisterError(w, fmt.Errorf("%w: %q", register.ErrUnknownTag, name))
		return
	}

	v, err := s.plc.Read(tag.Address())
	if err != nil {
		writeRegisterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TagValue{Tag: tag.Name, Address: tag.Address(), Value: v, Writable: tag.Writable})
}

// handleSetTag writes RUN or NEVER_STOP.
func (s *Server) handleSetTag(w http.ResponseWriter, r *http.Request) {
	var req SetTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "value is required")
		return
	}

	name := chi.URLParam(r, "tag")
	if *req.Value < 0 || *req.Value > math.MaxUint16 {
		writeRegisterError(w, fmt.Errorf("%w: %s=%d", register.ErrInvalidTagValue, name, *req.Value))
		return
	}
	value := uint16(*req.Value) //nolint:gosec // range checked above

	tag, err := register.WriteTag(s.plc, name, value)
	if err != nil {
		writeRegisterError(w, err)
		return
	}

	reqID := requestID(r.Context())
	s.logger.Info("tag written via api",
		"tag", tag.Name,
		"value", value,
		"request_id", reqID,
	)
	s.recordWrite(r.Context(), &audit.Entry{
		Tag:     tag.Name,
		Value:   value,
		Source:  audit.SourceAPI,
		Remote:  r.RemoteAddr,
		Details: map[string]any{"request_id": reqID},
	})
	writeJSON(w, http.StatusOK, TagValue{Tag: tag.Name, Address: tag.Address(), Value: value, Writable: true})
}

// recordWrite stores an audit entry when auditing is configured. A failure is
// logged and does not undo the write.
func (s *Server) recordWrite(ctx context.Context, e *audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, e); err != nil {
		s.logger.Warn("recording tag write failed", "tag", e.Tag, "error", err)
	}
}
