package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/mocks"
)

func TestQueryService_GetEntriesForDate(t *testing.T) {
	f := newFixture(t)
	f.writeSource(t, "1_taeyong/log.json", twoEntries)
	require.True(t, f.run(t).OK)

	rows, err := f.query.GetEntriesForDate(t.Context(), "taeyong", "2023-09-25")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "배추 수확", rows[0].Content)

	rows, err = f.query.GetEntriesForDate(t.Context(), "1_taeyong", "1999-01-01")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = f.query.GetEntriesForDate(t.Context(), "", "2023-09-25")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueryService_GetEntries(t *testing.T) {
	f := newFixture(t)
	f.writeSource(t, "1_taeyong/log.json", twoEntries)
	require.True(t, f.run(t).OK)

	list, err := f.query.GetEntries(t.Context(), "1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.query.GetEntries(t.Context(), "9_unknown")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueryService_Search(t *testing.T) {
	f := newFixture(t)
	f.writeSource(t, "1_taeyong/log.json", twoEntries)
	require.True(t, f.run(t).OK)

	hits, err := f.query.Search(t.Context(), "taeyong", "수확", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2023-09-25", hits[0].Date)

	f.store.Err = mocks.ErrMock
	_, err = f.query.Search(t.Context(), "1_taeyong", "수확", 3)
	require.ErrorIs(t, err, mocks.ErrMock)
}

func TestQueryService_QueryPassThrough(t *testing.T) {
	f := newFixture(t)
	f.index.Rows = []map[string]any{{"n": int64(2)}}

	rows, err := f.query.QueryRows(t.Context(), "SELECT count(*) AS n FROM records")
	require.NoError(t, err)
	assert.Equal(t, f.index.Rows, rows)

	_, err = f.query.QueryRows(t.Context(), "DELETE FROM records")
	require.ErrorIs(t, err, entities.ErrReadOnlyQuery)

	_, err = f.query.Query(t.Context(), "date LIKE ?", "2023%")
	require.Error(t, err)
}

func TestQueryService_Introspection(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.mutation.AddEntry(t.Context(), AddEntryInput{Entity: "1_taeyong", Date: "2023-09-25", Content: "x"}).OK)
	require.True(t, f.mutation.AddEntry(t.Context(), AddEntryInput{Entity: "2_minji", Date: "2023-09-25", Content: "y"}).OK)

	tables, err := f.query.ListTables(t.Context())
	require.NoError(t, err)
	assert.Contains(t, tables, "records")

	dump, err := f.query.DumpTables(t.Context())
	require.NoError(t, err)
	assert.Len(t, dump["records"], 2)

	all, err := f.query.AuditLog(t.Context(), "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "2_minji", all[0].EntityKey)

	one, err := f.query.AuditLog(t.Context(), "minji", 10)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, entities.AuditAddEntry, one[0].Action)
}

func TestQueryService_Profile(t *testing.T) {
	f := newFixture(t)
	p, err := f.query.Profile(t.Context(), "1_taeyong")
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())

	f.store.Err = mocks.ErrMock
	_, err = f.query.Profile(t.Context(), "1_taeyong")
	require.Error(t, err)
}
