package services

import "github.com/ersonp/farmlog/internal/domain/entities"

// RebuildEntries turns the surviving secondary index rows of one entity into
// the entry list its bundle should hold. Rows keep their order; a repeated
// ID keeps its first position and its last row.
func RebuildEntries(rows []entities.Record) []entities.Entry {
	out := make([]entities.Entry, 0, len(rows))
	pos := make(map[string]int, len(rows))
	for _, r := range rows {
		e := r.Entry
		if e.ID == "" {
			e.ID = entities.MakeEntryID(e.Date, e.Time, e.Content)
		}
		if e.EntityID == "" && e.EntityName == "" {
			e.EntityID, e.EntityName = entities.SplitEntityKey(e.EntityKey)
		}
		if i, ok := pos[e.ID]; ok {
			out[i] = e
			continue
		}
		pos[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
