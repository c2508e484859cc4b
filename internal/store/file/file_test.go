package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/bpmon/internal/monitor"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	st, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	checked := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []monitor.Record{
		{ID: "deploy-review", Kind: monitor.KindTask, IntervalSeconds: 30, LastStatus: "Active", LastChecked: &checked},
		{ID: "onboarding", Kind: monitor.KindDefinition, Name: "Onboarding", IntervalSeconds: 60,
			LastStatus: "Completed", LastChecked: &checked,
			RecentInstances: []monitor.InstanceSummary{{ID: "i-1", Status: "Completed"}}},
	}
	if err := st.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "deploy-review" || got[0].Kind != monitor.KindTask || got[0].IntervalSeconds != 30 {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[0].LastChecked == nil || !got[0].LastChecked.Equal(checked) {
		t.Fatalf("last_checked lost in round trip: %+v", got[0].LastChecked)
	}
	if len(got[1].RecentInstances) != 1 || got[1].RecentInstances[0].ID != "i-1" {
		t.Fatalf("recent_instances lost in round trip: %+v", got[1].RecentInstances)
	}
}

func TestFileNeverCheckedStaysNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	st, _ := New(path)
	if err := st.Save([]monitor.Record{{ID: "fresh", Kind: monitor.KindTask, IntervalSeconds: 10}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got[0].LastChecked != nil {
		t.Fatalf("expected nil last_checked, got %v", got[0].LastChecked)
	}
	if got[0].LastStatus != "" {
		t.Fatalf("expected empty status, got %q", got[0].LastStatus)
	}
}

func TestFileMissingLoadsEmpty(t *testing.T) {
	st, _ := New(filepath.Join(t.TempDir(), "never-written.json"))
	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected empty set, got %+v", got)
	}
}

func TestFileCorruptLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, _ := New(path)
	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("corrupt file must load as empty, got %+v", got)
	}
}

func TestFileSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "monitors.json")
	st, _ := New(path)
	if err := st.Save(nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("nil set must serialize as empty array, got %q", data)
	}
}

func TestFileSaveSupersedes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	st, _ := New(path)
	_ = st.Save([]monitor.Record{{ID: "a", Kind: monitor.KindTask, IntervalSeconds: 10}, {ID: "b", Kind: monitor.KindTask, IntervalSeconds: 10}})
	_ = st.Save([]monitor.Record{{ID: "b", Kind: monitor.KindTask, IntervalSeconds: 20}})

	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" || got[0].IntervalSeconds != 20 {
		t.Fatalf("second save must fully replace the first: %+v", got)
	}
}

func TestFileEmptyPathRejected(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
