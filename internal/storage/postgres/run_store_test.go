package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

func TestSaveReportInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)

	start := time.Unix(1700000000, 0).UTC()
	report := runs.Report{
		ID:         "run-1",
		Kind:       runs.KindCleanup,
		Status:     runs.StatusSucceeded,
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Params:     map[string]bool{"dryRun": true},
		Stats:      map[string]int{"processed": 10},
	}

	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs(
			"run-1",
			"cleanup",
			"succeeded",
			report.StartedAt,
			report.FinishedAt,
			[]byte(`{"dryRun":true}`),
			[]byte(`{"processed":10}`),
			(*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveReport(context.Background(), report))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportPropagatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "runs_custom")
	require.NoError(t, err)

	failure := "boom"
	mock.ExpectExec("INSERT INTO runs_custom").
		WithArgs(
			"run-2",
			"crawl",
			"failed",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			[]byte(nil),
			[]byte(nil),
			&failure,
		).
		WillReturnError(errors.New("connection reset"))

	err = store.SaveReport(context.Background(), runs.Report{ID: "run-2", Kind: runs.KindCrawl, Status: runs.StatusFailed, Error: "boom"})
	require.ErrorContains(t, err, "connection reset")
	require.ErrorContains(t, err, "insert run run-2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, store.SaveReport(context.Background(), runs.Report{}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingest_runs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRunStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRunStoreWithPool(mock, "bad-name;drop")
	require.Error(t, err)
}
