package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap/zaptest"

	"repairshop/services"
)

// newTestRequestEvent creates a RequestEvent suitable for handler tests.
func newTestRequestEvent(app *pocketbase.PocketBase, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

// newJobRequest builds a request for a /jobs/{jobId}/... route with the path
// value set. body is JSON-encoded when not nil.
func newJobRequest(t *testing.T, method, path, jobID string, body any) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.SetPathValue("jobId", jobID)
	return req
}

// newTestEngine returns an engine over app's records with the recompute hooks
// bound, the way main wires it.
func newTestEngine(t *testing.T, app *pocketbase.PocketBase, opts ...services.EngineOption) *services.CostEngine {
	t.Helper()

	engine := services.NewCostEngine(services.NewRecordLineSource(app), services.NewMemoryTotalStore(), opts...)
	services.BindRecomputeHooks(app, engine, zaptest.NewLogger(t))
	return engine
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, rec.Body.String())
	}
}
