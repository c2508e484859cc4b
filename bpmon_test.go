package bpmon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestFacadeManagerLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/t-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "Active", "name": "Review"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st, err := NewStore(filepath.Join(t.TempDir(), "monitors.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = st.Close() }()

	factory := func() (*Client, error) {
		return NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "tok", VerifySSL: true})
	}
	m := NewManager(st, factory)

	rec := m.AddMonitor("t-1", KindTask, 25)
	if rec.ID != "t-1" || rec.Kind != KindTask || rec.IntervalSeconds != 25 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	rec, ok := m.CheckNow(context.Background(), "t-1")
	if !ok || rec.LastStatus != "Active" || rec.Name != "Review" {
		t.Fatalf("check: ok=%v rec=%+v", ok, rec)
	}

	if got := m.Monitors(); len(got) != 1 {
		t.Fatalf("monitors: %+v", got)
	}
	if s := m.Serialize(); len(s) != 1 {
		t.Fatalf("serialize: %+v", s)
	}

	m.RemoveMonitor("t-1")
	if _, ok := m.Get("t-1"); ok {
		t.Fatal("monitor should be gone")
	}
}

func TestFacadeStoreRestartRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	factory := func() (*Client, error) {
		return NewClient(ClientConfig{BaseURL: "http://localhost:1", APIKey: "tok", VerifySSL: true})
	}

	st, err := NewStore(path)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m := NewManager(st, factory)
	m.AddMonitor("persisted", KindDefinition, 40)
	_ = st.Close()

	// a second manager over the same path sees the record
	st2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = st2.Close() }()
	m2 := NewManager(st2, factory)
	rec, ok := m2.Get("persisted")
	if !ok || rec.Kind != KindDefinition || rec.IntervalSeconds != 40 {
		t.Fatalf("record did not survive restart: ok=%v rec=%+v", ok, rec)
	}
}

func TestFacadeRegisterMetricsDefault(t *testing.T) {
	if err := RegisterMetricsDefault(); err != nil {
		t.Fatalf("register: %v", err)
	}
	// second call is a no-op
	if err := RegisterMetricsDefault(); err != nil {
		t.Fatalf("re-register: %v", err)
	}
}
