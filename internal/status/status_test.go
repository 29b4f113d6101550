package status_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"

	"github.com/mildmongrel/thicket/internal/session"
	"github.com/mildmongrel/thicket/internal/status"
)

type staticSource []session.Snapshot

func (s staticSource) Snapshots() []session.Snapshot { return s }

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSessions(t *testing.T) {
	is := is.New(t)

	source := staticSource{
		{Name: "sim_0000", State: session.StateInRoom, RoomID: 2, Picks: 3},
		{Name: "sim_0001", State: session.StateFailed, Err: "login failed"},
	}
	handler := status.NewServer(source, nil).Handler()

	rec := get(t, handler, "/sessions")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(rec.Header().Get("Access-Control-Allow-Origin"), "*")

	var body struct {
		Summary struct {
			Total  int
			Failed int
		} `json:"summary"`
		Sessions []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"sessions"`
	}
	is.NoErr(json.Unmarshal(rec.Body.Bytes(), &body))
	is.Equal(body.Summary.Total, 2)
	is.Equal(body.Summary.Failed, 1)
	is.Equal(len(body.Sessions), 2)
	is.Equal(body.Sessions[0].State, "in_room")

	rec = get(t, handler, "/sessions/sim_0001")
	is.Equal(rec.Code, http.StatusOK)

	rec = get(t, handler, "/sessions/nobody")
	is.Equal(rec.Code, http.StatusNotFound)
}

func TestHealthz(t *testing.T) {
	is := is.New(t)

	rec := get(t, status.NewServer(staticSource{}, nil).Handler(), "/healthz")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(rec.Body.String(), `{"status":"ok"}`)
}
