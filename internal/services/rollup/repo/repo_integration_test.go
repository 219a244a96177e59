//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"gitrank/internal/platform/store"
	"gitrank/internal/services/rollup/domain"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a disposable Postgres and returns DSN + stop func
func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

const schema = `
CREATE TABLE user_rollups (
	user_id    text        NOT NULL,
	period     text        NOT NULL,
	commits    integer     NOT NULL DEFAULT 0 CHECK (commits >= 0),
	prs        integer     NOT NULL DEFAULT 0 CHECK (prs >= 0),
	issues     integer     NOT NULL DEFAULT 0 CHECK (issues >= 0),
	total      integer     NOT NULL DEFAULT 0 CHECK (total >= 0),
	fetched_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, period)
)`

func newIntegrationStorage(t *testing.T) (Storage, func()) {
	t.Helper()
	dsn, stopPG := startPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	}, store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		cancel()
		stopPG()
		t.Fatalf("store.Open failed: %v", err)
	}
	if _, err := st.PG.Exec(ctx, schema); err != nil {
		cancel()
		stopPG()
		t.Fatalf("create schema: %v", err)
	}

	stop := func() {
		_ = st.Close(context.Background())
		cancel()
		stopPG()
	}
	return NewPG().Bind(st.PG), stop
}

func TestStorageUpsertReplacesAndRecomputesTotal(t *testing.T) {
	st, stop := newIntegrationStorage(t)
	defer stop()
	ctx := context.Background()

	fetched := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	first := domain.Record{
		UserID: "u1", Period: domain.Period30d,
		Commits: 3, PRs: 1, Issues: 2,
		Total:     999, // must be ignored and recomputed
		FetchedAt: fetched,
	}
	if err := st.UpsertRecord(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	recs, err := st.RecordsForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Total != 6 {
		t.Fatalf("records = %+v", recs)
	}

	// a second refresh fully replaces, never accumulates
	second := first
	second.Commits, second.PRs, second.Issues = 1, 0, 0
	if err := st.UpsertRecord(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	recs, err = st.RecordsForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Total != 1 || recs[0].Commits != 1 {
		t.Fatalf("records after replace = %+v", recs)
	}
}

func TestStoragePageByTotalOrderingAndTiebreak(t *testing.T) {
	st, stop := newIntegrationStorage(t)
	defer stop()
	ctx := context.Background()

	fetched := time.Now().UTC()
	seed := []struct {
		user  string
		total int
	}{
		{"u1", 50}, {"u2", 80}, {"u3", 30}, {"u4", 80},
	}
	for _, s := range seed {
		err := st.UpsertRecord(ctx, domain.Record{
			UserID: s.user, Period: domain.Period365d,
			Commits: s.total, FetchedAt: fetched,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	page, err := st.PageByTotal(ctx, domain.Period365d, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	// equal totals break ties on user_id ascending
	want := []string{"u2", "u4", "u1"}
	if len(page) != 3 {
		t.Fatalf("page = %+v", page)
	}
	for i, w := range want {
		if page[i].UserID != w {
			t.Fatalf("page[%d] = %s want %s", i, page[i].UserID, w)
		}
	}

	rest, err := st.PageByTotal(ctx, domain.Period365d, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].UserID != "u3" {
		t.Fatalf("rest = %+v", rest)
	}
}

func TestStorageDeleteUser(t *testing.T) {
	st, stop := newIntegrationStorage(t)
	defer stop()
	ctx := context.Background()

	fetched := time.Now().UTC()
	for _, p := range domain.FetchPeriods() {
		err := st.UpsertRecord(ctx, domain.Record{
			UserID: "u1", Period: p, Commits: 1, FetchedAt: fetched,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := st.DeleteUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	recs, err := st.RecordsForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("records = %+v", recs)
	}

	// deleting an unknown user is a no-op
	if err := st.DeleteUser(ctx, "nobody"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}
