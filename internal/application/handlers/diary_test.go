package handlers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	"github.com/ersonp/farmlog/internal/infrastructure/parsers"
)

func TestDiaryHandler_Scenario(t *testing.T) {
	a := newApp(t)
	ctx := t.Context()
	a.writeSource(t, "1_taeyong/log_2023-09-22.json", taeyongLog)

	report, err := a.ingest.Handle(ctx)
	require.NoError(t, err)
	require.True(t, report.OK, report.Errors)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.EntriesStored)

	list, err := a.diary.ListEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_taeyong"}, list.Entities)

	// Lookup by the name part resolves to the full key.
	day, err := a.diary.EntriesForDate(ctx, "taeyong", "2023-09-25")
	require.NoError(t, err)
	assert.Equal(t, "1_taeyong", day.Entity)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "배추 수확", day.Entries[0].Content)

	added := a.diary.AddEntry(ctx, "1_taeyong", "2023-09-26", "07:10", "비료 살포", "")
	require.True(t, added.OK, added.Errors)
	assert.Equal(t, filepath.Join(a.sourceRoot, "1_taeyong", "log_2023-09-26.json"), added.FilePath)

	data, err := os.ReadFile(added.FilePath)
	require.NoError(t, err)
	raw, err := parsers.ForFile(added.FilePath, config.DefaultListField).Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, raw, 1)

	day, err = a.diary.EntriesForDate(ctx, "1_taeyong", "2023-09-26")
	require.NoError(t, err)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, added.Entry.ID, day.Entries[0].ID)

	// The written file is already in the ledger.
	report, err = a.ingest.Handle(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Equal(t, 2, report.Skipped)

	deleted := a.diary.DeleteEntriesForDate(ctx, "1_taeyong", "2023-09-22")
	require.True(t, deleted.OK, deleted.Errors)
	assert.Equal(t, 1, deleted.DeletedRecords)
	assert.Equal(t, 2, deleted.Remaining)
	// The other date in the log file moved to a file of its own.
	log25 := filepath.Join(a.sourceRoot, "1_taeyong", "log_2023-09-25.json")
	assert.Equal(t, []string{filepath.Join(a.sourceRoot, "1_taeyong", "log_2023-09-22.json")}, deleted.DeletedFiles)
	assert.Equal(t, []string{log25}, deleted.RewrittenFiles)

	day, err = a.diary.EntriesForDate(ctx, "1_taeyong", "2023-09-22")
	require.NoError(t, err)
	assert.Empty(t, day.Entries)

	day, err = a.diary.EntriesForDate(ctx, "1_taeyong", "2023-09-25")
	require.NoError(t, err)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, log25, day.Entries[0].FilePath)

	report, err = a.ingest.Handle(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Equal(t, 2, report.Skipped)

	entries, err := a.store.GetEntries(ctx, "1_taeyong")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDiaryHandler_EmptyResultsAreNotNil(t *testing.T) {
	a := newApp(t)

	list, err := a.diary.ListEntities(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, list.Entities)
	assert.Empty(t, list.Entities)

	day, err := a.diary.EntriesForDate(t.Context(), "nobody", "2023-09-22")
	require.NoError(t, err)
	assert.Equal(t, "nobody", day.Entity)
	assert.NotNil(t, day.Entries)
	assert.Empty(t, day.Entries)
}

func TestDiaryHandler_AddEntryInvalidEntity(t *testing.T) {
	a := newApp(t)

	res := a.diary.AddEntry(t.Context(), "../escape", "2023-09-26", "07:10", "x", "")

	assert.False(t, res.OK)
	assert.False(t, res.Written)
	assert.NotEmpty(t, res.Error)
}

func TestDiaryHandler_DeleteEntity(t *testing.T) {
	a := newApp(t)
	ctx := t.Context()
	a.writeSource(t, "1_taeyong/log_2023-09-22.json", taeyongLog)
	_, err := a.ingest.Handle(ctx)
	require.NoError(t, err)

	res := a.diary.DeleteEntity(ctx, "1_taeyong", true)
	require.True(t, res.OK, res.Errors)
	assert.Equal(t, 2, res.DeletedRecords)
	assert.True(t, res.SourcesRemoved)

	list, err := a.diary.ListEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, list.Entities)
	assert.NoDirExists(t, filepath.Join(a.sourceRoot, "1_taeyong"))

	audit, err := a.query.Audit(ctx, "1_taeyong", 0)
	require.NoError(t, err)
	require.NotEmpty(t, audit.Entries)
	assert.Equal(t, entities.AuditDeleteEntity, audit.Entries[0].Action)
}

func TestDiaryHandler_Profile(t *testing.T) {
	a := newApp(t)
	ctx := t.Context()
	a.writeSource(t, "1_taeyong/log_2023-09-22.json", taeyongLog)
	_, err := a.ingest.Handle(ctx)
	require.NoError(t, err)

	saved, err := a.diary.SaveProfile(ctx, "taeyong", entities.Profile{Name: "Taeyong", Location: "Jeju"})
	require.NoError(t, err)
	assert.Equal(t, "1_taeyong", saved.Entity)

	got, err := a.diary.Profile(ctx, "1_taeyong")
	require.NoError(t, err)
	assert.Equal(t, "Jeju", got.Profile.Location)
	assert.Equal(t, "Taeyong", got.Profile.Name)
}

func TestDiaryHandler_SameTripleAcrossFiles(t *testing.T) {
	a := newApp(t)
	ctx := t.Context()
	a.writeSource(t, "1_taeyong/a.json", `{"id": "a1", "date": "2023-09-22", "time": "08:00", "content": "same"}`)
	a.writeSource(t, "1_taeyong/b.json", `{"id": "b1", "date": "2023-09-22", "time": "08:00", "content": "same"}`)

	report, err := a.ingest.Handle(ctx)
	require.NoError(t, err)
	require.True(t, report.OK, report.Errors)

	added := a.diary.AddEntry(ctx, "1_taeyong", "2023-09-22", "08:00", "same", "")
	require.True(t, added.OK, added.Errors)

	day, err := a.diary.EntriesForDate(ctx, "1_taeyong", "2023-09-22")
	require.NoError(t, err)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, entities.MakeEntryID("2023-09-22", "08:00", "same"), day.Entries[0].ID)

	entries, err := a.store.GetEntries(ctx, "1_taeyong")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
