package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/loykin/bpmon/internal/monitor"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// startPostgresContainer starts a PostgreSQL container for tests
// and returns a DSN suitable for pgx stdlib. It skips the test if Docker is unavailable.
func startPostgresContainer(t *testing.T) (dsn string, terminate func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
	if err != nil {
		cancel()
		t.Skipf("Failed to start PostgreSQL container: %v", err)
		return "", nil
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		t.Skipf("Failed to get host info: %v", err)
		return "", nil
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		t.Skipf("Failed to get mapped port: %v", err)
		return "", nil
	}

	dsn = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	terminate = func() {
		_ = container.Terminate(ctx)
		cancel()
	}

	return dsn, terminate
}

func waitForPostgres(t *testing.T, dsn string) {
	// Try to ping until timeout; helps when container reports ready but DB not yet accepting connections
	deadline := time.Now().Add(45 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				_ = db.Close()
				cancel()
				return
			}
			_ = db.Close()
		}
		cancel()
		if time.Now().After(deadline) {
			t.Fatalf("postgres not ready in time: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func TestPostgresRoundTripAndSupersede(t *testing.T) {
	dsn, terminate := startPostgresContainer(t)
	defer terminate()
	waitForPostgres(t, dsn)

	st, err := New(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	checked := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []monitor.Record{
		{ID: "deploy-review", Kind: monitor.KindTask, IntervalSeconds: 30, LastStatus: "Active", LastChecked: &checked},
		{ID: "onboarding", Kind: monitor.KindDefinition, Name: "Onboarding", IntervalSeconds: 60,
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
	if got[0].ID != "deploy-review" || got[0].Kind != monitor.KindTask {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[0].LastChecked == nil || !got[0].LastChecked.Equal(checked) {
		t.Fatalf("last_checked lost: %+v", got[0].LastChecked)
	}
	if got[1].LastChecked != nil {
		t.Fatalf("never-checked record gained a timestamp: %v", got[1].LastChecked)
	}
	if len(got[1].RecentInstances) != 1 || got[1].RecentInstances[0].ID != "i-1" {
		t.Fatalf("recent_instances lost: %+v", got[1].RecentInstances)
	}

	// a second Save fully replaces the set
	if err := st.Save([]monitor.Record{{ID: "onboarding", Kind: monitor.KindDefinition, IntervalSeconds: 90}}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = st.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got) != 1 || got[0].ID != "onboarding" || got[0].IntervalSeconds != 90 {
		t.Fatalf("second save must fully replace the first: %+v", got)
	}
}

func TestPostgresEmptyDSNRejected(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
