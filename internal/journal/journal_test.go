package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/database"
	"github.com/nerrad567/seplos-sink/internal/journal"
	"github.com/nerrad567/seplos-sink/internal/sink"
	"github.com/nerrad567/seplos-sink/migrations"
)

var _ sink.EventRecorder = (*journal.SQLiteRepository)(nil)

func openJournal(t *testing.T) *journal.SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "sink.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return journal.NewSQLiteRepository(db.DB, "influxdb")
}

func TestRecordAndList(t *testing.T) {
	repo := openJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []sink.Event{
		{Kind: sink.EventConnectFailed, Attempt: 1, Detail: "connection refused", At: base},
		{Kind: sink.EventConnectFailed, Attempt: 2, Detail: "connection refused", At: base.Add(5 * time.Second)},
		{Kind: sink.EventReconnected, At: base.Add(15 * time.Second)},
	}
	for _, e := range events {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := repo.List(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(got))
	}

	latest := got[0]
	if latest.Kind != "reconnected" || latest.Backend != "influxdb" {
		t.Errorf("latest = %+v, want reconnected/influxdb", latest)
	}
	if !latest.OccurredAt.Equal(base.Add(15 * time.Second)) {
		t.Errorf("OccurredAt = %v", latest.OccurredAt)
	}
	if latest.Detail != "" {
		t.Errorf("Detail = %q, want empty", latest.Detail)
	}
	if len(latest.ID) != len("evt-")+8 {
		t.Errorf("ID = %q, want evt- prefix and 8 chars", latest.ID)
	}
	if got[2].Attempt != 1 || got[2].Detail != "connection refused" {
		t.Errorf("oldest = %+v", got[2])
	}
}

func TestList_Filter(t *testing.T) {
	repo := openJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		kind := sink.EventWriteFailed
		if i%2 == 0 {
			kind = sink.EventConnected
		}
		if err := repo.Record(ctx, sink.Event{Kind: kind, At: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter journal.Filter
		want   int
	}{
		{"all", journal.Filter{}, 5},
		{"by kind", journal.Filter{Kind: "connected"}, 3},
		{"limited", journal.Filter{Limit: 2}, 2},
		{"unknown kind", journal.Filter{Kind: "nope"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestRecord_RejectsUnknownKind(t *testing.T) {
	repo := openJournal(t)
	if err := repo.Record(context.Background(), sink.Event{Kind: "bogus"}); err == nil {
		t.Error("Record() with unknown kind should fail")
	}
}

func TestPrune(t *testing.T) {
	repo := openJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{base.AddDate(0, 0, -40), base.AddDate(0, 0, -31), base} {
		if err := repo.Record(ctx, sink.Event{Kind: sink.EventConnected, At: at}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, base.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() removed %d, want 2", n)
	}

	got, err := repo.List(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("remaining = %d, want 1", len(got))
	}
}

func TestRecord_FromSink(t *testing.T) {
	repo := openJournal(t)
	ctx := context.Background()

	open := func(context.Context) (sink.Store, error) {
		return nil, sink.ErrCapabilityUnavailable
	}
	s, err := sink.Open(ctx, sink.Config{
		Enabled: true,
		Target:  sink.Target{URL: "http://127.0.0.1:8086", Token: "t", Org: "o", Bucket: "b"},
	}, open, sink.WithEventRecorder(repo))
	if err != nil {
		t.Fatalf("sink.Open() error = %v", err)
	}
	defer s.Close()

	got, err := repo.List(ctx, journal.Filter{Kind: "disabled"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("disabled events = %d, want 1", len(got))
	}
}
