package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pyq-crawler/internal/question"
)

func TestRecordStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRecordStore()
	require.NoError(t, store.EnsureIndexes(ctx))

	rec := question.Record{ID: "01", Exam: "UPSC", Question: "What is the Preamble of India?", Lang: "en"}
	require.NoError(t, store.Insert(ctx, rec))
	require.Error(t, store.Insert(ctx, rec), "duplicate ids are rejected")
	require.Error(t, store.Insert(ctx, question.Record{}), "empty ids are rejected")

	exam := "SSC"
	require.NoError(t, store.Update(ctx, "01", question.Patch{Exam: &exam}))
	got, ok := store.Get("01")
	require.True(t, ok)
	require.Equal(t, "SSC", got.Exam)
	require.False(t, got.UpdatedAt.IsZero())

	err := store.Update(ctx, "missing", question.Patch{Exam: &exam})
	require.True(t, errors.Is(err, question.ErrNotFound))

	require.NoError(t, store.Delete(ctx, "01"))
	require.Equal(t, 0, store.Len())
	require.True(t, errors.Is(store.Delete(ctx, "01"), question.ErrNotFound))
}

func TestRecordStoreScanIsKeyset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRecordStore()
	for _, id := range []string{"03", "01", "02", "04"} {
		require.NoError(t, store.Insert(ctx, question.Record{ID: id}))
	}

	first, err := store.Scan(ctx, "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"01", "02"}, ids(first))

	rest, err := store.Scan(ctx, "02", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"03", "04"}, ids(rest))
}

func TestRecordStoreDuplicateGroups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRecordStore()
	year := question.IntPtr(2020)
	q := "Discuss the role of the Finance Commission in fiscal federalism?"
	require.NoError(t, store.Insert(ctx, question.Record{ID: "a", Exam: "UPSC", Year: year, Lang: "en", Question: q}))
	require.NoError(t, store.Insert(ctx, question.Record{ID: "b", Exam: "UPSC", Year: year, Lang: "en", Question: q, Verified: true}))
	require.NoError(t, store.Insert(ctx, question.Record{ID: "c", Exam: "UPSC", Year: year, Lang: "hi", Question: q}))
	require.NoError(t, store.Insert(ctx, question.Record{ID: "d", Exam: "UPSC", Lang: "en", Question: q}))
	require.NoError(t, store.Insert(ctx, question.Record{ID: "e", Exam: "UPSC", Lang: "en", Question: q + " extra"}))

	groups, err := store.DuplicateGroups(ctx, 20)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, []string{"a", "b"}, memberIDs(groups[0]))
	require.True(t, groups[0].Members[1].Verified)
	require.Nil(t, groups[1].Key.Year)
	require.Equal(t, []string{"d", "e"}, memberIDs(groups[1]))
}

func ids(recs []question.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func memberIDs(g question.DuplicateGroup) []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, m.ID)
	}
	return out
}
