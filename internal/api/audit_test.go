package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/nerrad567/virtuaplant-core/internal/audit"
)

type fakeAudit struct {
	created    []audit.Entry
	lastFilter audit.Filter
	createErr  error
}

func (a *fakeAudit) Create(_ context.Context, e *audit.Entry) error {
	if a.createErr != nil {
		return a.createErr
	}
	a.created = append(a.created, *e)
	return nil
}

func (a *fakeAudit) List(_ context.Context, f audit.Filter) (*audit.ListResult, error) {
	a.lastFilter = f
	return &audit.ListResult{Entries: a.created, Total: len(a.created), Limit: f.Limit, Offset: f.Offset}, nil
}

func TestSetTag_Audited(t *testing.T) {
	a := &fakeAudit{}
	srv, _ := testServer(t, func(d *Deps) { d.Audit = a })

	rec := do(t, srv, http.MethodPut, "/api/v1/tags/never_stop", `{"value":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(a.created) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(a.created))
	}
	e := a.created[0]
	if e.Tag != "never_stop" || e.Value != 2 || e.Source != audit.SourceAPI {
		t.Errorf("entry = %+v", e)
	}
	if id, _ := e.Details["request_id"].(string); id == "" {
		t.Error("entry missing request_id")
	}

	// Rejected writes are not audited.
	rec = do(t, srv, http.MethodPut, "/api/v1/tags/motor", `{"value":1}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(a.created) != 1 {
		t.Errorf("audit entries = %d after rejected write, want 1", len(a.created))
	}
}

func TestSetTag_AuditFailureKeepsWrite(t *testing.T) {
	srv, bank := testServer(t, func(d *Deps) { d.Audit = &fakeAudit{createErr: errors.New("disk full")} })

	rec := do(t, srv, http.MethodPut, "/api/v1/tags/run", `{"value":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, _ := bank.Read(0); got != 1 {
		t.Errorf("RUN = %d, want 1", got)
	}
}

func TestWriteHistory(t *testing.T) {
	tests := []struct {
		name       string
		audit      *fakeAudit
		path       string
		wantStatus int
		wantFilter audit.Filter
	}{
		{
			name:       "not configured",
			path:       "/api/v1/history/writes",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "filters",
			audit:      &fakeAudit{},
			path:       "/api/v1/history/writes?tag=run&source=mqtt&limit=5&offset=10",
			wantStatus: http.StatusOK,
			wantFilter: audit.Filter{Tag: "run", Source: audit.SourceMQTT, Limit: 5, Offset: 10},
		},
		{
			name:       "bad source",
			audit:      &fakeAudit{},
			path:       "/api/v1/history/writes?source=modbus",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad offset",
			audit:      &fakeAudit{},
			path:       "/api/v1/history/writes?offset=-1",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, func(d *Deps) {
				if tt.audit != nil {
					d.Audit = tt.audit
				}
			})

			rec := do(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && tt.audit.lastFilter != tt.wantFilter {
				t.Errorf("filter = %+v, want %+v", tt.audit.lastFilter, tt.wantFilter)
			}
		})
	}
}
