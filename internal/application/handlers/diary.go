package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/services"
)

// DiaryHandler is the entry surface consumed by a web layer. Every result
// is a plain struct that serializes directly.
type DiaryHandler struct {
	queryService    *services.QueryService
	mutationService *services.MutationService
}

// NewDiaryHandler creates a new diary handler.
func NewDiaryHandler(queryService *services.QueryService, mutationService *services.MutationService) *DiaryHandler {
	return &DiaryHandler{
		queryService:    queryService,
		mutationService: mutationService,
	}
}

// EntitiesResult lists the stored entities.
type EntitiesResult struct {
	Entities []string `json:"entities"`
}

// EntriesResult holds an entity's entries for one date.
type EntriesResult struct {
	Entity  string            `json:"entity"`
	Date    string            `json:"date"`
	Entries []entities.Record `json:"entries"`
}

// ProfileResult holds an entity's profile.
type ProfileResult struct {
	Entity  string           `json:"entity"`
	Profile entities.Profile `json:"profile"`
}

// ListEntities returns every stored entity key.
func (h *DiaryHandler) ListEntities(ctx context.Context) (*EntitiesResult, error) {
	keys, err := h.queryService.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return &EntitiesResult{Entities: keys}, nil
}

// EntriesForDate returns the entity's entries on date.
func (h *DiaryHandler) EntriesForDate(ctx context.Context, entity, date string) (*EntriesResult, error) {
	key := h.queryService.Resolve(ctx, entity)
	recs, err := h.queryService.GetEntriesForDate(ctx, key, date)
	if err != nil {
		return nil, fmt.Errorf("getting entries for %s on %s: %w", entity, date, err)
	}
	if recs == nil {
		recs = []entities.Record{}
	}
	return &EntriesResult{Entity: key, Date: date, Entries: recs}, nil
}

// AddEntry adds an entry. Failures are reported in the result.
func (h *DiaryHandler) AddEntry(ctx context.Context, entity, date, timeStr, content, targetFilename string) *services.AddEntryResult {
	return h.mutationService.AddEntry(ctx, services.AddEntryInput{
		Entity:         entity,
		Date:           date,
		Time:           timeStr,
		Content:        content,
		TargetFilename: targetFilename,
	})
}

// DeleteEntriesForDate deletes the entity's entries on date. Failures are
// reported in the result.
func (h *DiaryHandler) DeleteEntriesForDate(ctx context.Context, entity, date string) *services.DeleteResult {
	return h.mutationService.DeleteEntriesForDate(ctx, entity, date)
}

// DeleteEntity deletes an entity, optionally with its source folder.
func (h *DiaryHandler) DeleteEntity(ctx context.Context, entity string, removeSources bool) *services.DeleteEntityResult {
	return h.mutationService.DeleteEntity(ctx, entity, removeSources)
}

// Profile returns the entity's profile.
func (h *DiaryHandler) Profile(ctx context.Context, entity string) (*ProfileResult, error) {
	key := h.queryService.Resolve(ctx, entity)
	p, err := h.queryService.Profile(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ProfileResult{Entity: key, Profile: p}, nil
}

// SaveProfile stores the entity's profile.
func (h *DiaryHandler) SaveProfile(ctx context.Context, entity string, p entities.Profile) (*ProfileResult, error) {
	key := h.queryService.Resolve(ctx, entity)
	if err := h.mutationService.SaveProfile(ctx, key, p); err != nil {
		return nil, err
	}
	return &ProfileResult{Entity: key, Profile: p}, nil
}
