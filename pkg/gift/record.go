package gift

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/alged/giftstream/pkg/telegram"
)

const defaultTitle = "Gift"

// NewRecord builds a canonical Record from a classified incoming event.
// The full payload is retained as raw JSON so records can be re-extracted
// when the decoder learns new attribute variants.
func NewRecord(ev *Event) *Record {
	rec := &Record{
		ID:             uuid.New(),
		ExternalGiftID: ev.ExternalGiftID,
		Title:          defaultTitle,
		FromID:         ev.FromID,
		ReceivedAt:     ev.ReceivedAt,
	}
	if rec.FromID == "" {
		rec.FromID = "unknown"
	}

	payload := ev.Payload
	if payload == nil {
		return rec
	}

	if payload.Title != "" {
		rec.Title = payload.Title
	}
	rec.Document = DocumentRefFromRaw(payload.Document)
	rec.Attributes = Extract(payload)

	if raw, err := json.Marshal(payload); err == nil {
		rec.RawPayload = raw
	}

	return rec
}

// EnrichFromCatalog fills fields a thin live event left empty from the
// gift's catalog entry. Existing values always win; the catalog only adds.
func (r *Record) EnrichFromCatalog(payload *telegram.StarGiftPayload) {
	if payload == nil {
		return
	}
	if r.Title == defaultTitle && payload.Title != "" {
		r.Title = payload.Title
	}
	if r.Document == nil {
		r.Document = DocumentRefFromRaw(payload.Document)
	}
	if r.Attributes == (Attributes{}) && len(payload.Attributes) > 0 {
		r.Attributes = Extract(payload)
	}
}

// RecordFromSaved builds a Record from one saved-history entry, the shape
// the reconciler replays. Semantics match NewRecord so a reconciled row
// merges cleanly with one the live listener wrote.
func RecordFromSaved(sg telegram.SavedGift) *Record {
	rec := &Record{
		ID:    uuid.New(),
		Title: defaultTitle,
	}

	if sg.FromID != nil {
		rec.FromID = sg.FromID.ID()
	}
	if rec.FromID == "" {
		rec.FromID = "unknown"
	}
	if sg.Date > 0 {
		rec.ReceivedAt = time.Unix(sg.Date, 0).UTC()
	} else {
		rec.ReceivedAt = time.Now().UTC()
	}

	payload := sg.Gift
	if payload == nil {
		return rec
	}

	rec.ExternalGiftID = payload.ID
	if payload.Title != "" {
		rec.Title = payload.Title
	}
	rec.Document = DocumentRefFromRaw(payload.Document)
	rec.Attributes = Extract(payload)

	if raw, err := json.Marshal(payload); err == nil {
		rec.RawPayload = raw
	}

	return rec
}
