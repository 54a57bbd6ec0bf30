package giftstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/alged/giftstream/pkg/gift"
)

// GiftDao is a data access object that maps directly to the 'gifts' table in
// PostgreSQL. Attribute sub-records and the original payload are kept as
// JSONB so future attribute variants survive round-trips unchanged.
type GiftDao struct {
	bun.BaseModel `bun:"table:gifts,alias:g"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid"`
	ExternalGiftID  *string         `bun:"external_gift_id,unique,type:varchar(64)"`
	Title           string          `bun:"title,notnull,type:varchar(255)"`
	Document        json.RawMessage `bun:"document,type:jsonb"`
	Model           json.RawMessage `bun:"model,type:jsonb"`
	Backdrop        json.RawMessage `bun:"backdrop,type:jsonb"`
	Pattern         json.RawMessage `bun:"pattern,type:jsonb"`
	OriginalDetails json.RawMessage `bun:"original_details,type:jsonb"`
	FromID          string          `bun:"from_id,notnull,type:varchar(64)"`
	ReceivedAt      time.Time       `bun:"received_at,notnull"`
	IsWithdrawn     bool            `bun:"is_withdrawn,notnull,default:false"`
	WithdrawnAt     *time.Time      `bun:"withdrawn_at"`
	WithdrawnToID   *string         `bun:"withdrawn_to_id,type:varchar(64)"`
	LottieURL       *string         `bun:"lottie_url,type:varchar(512)"`
	RawPayload      json.RawMessage `bun:"raw_payload,type:jsonb"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero,default:current_timestamp"`
}

// toDao converts a gift.Record to its row representation.
func toDao(rec *gift.Record) *GiftDao {
	dao := &GiftDao{
		ID:          rec.ID,
		Title:       rec.Title,
		FromID:      rec.FromID,
		ReceivedAt:  rec.ReceivedAt,
		IsWithdrawn: rec.IsWithdrawn,
		WithdrawnAt: rec.WithdrawnAt,
		RawPayload:  rec.RawPayload,
	}

	if rec.ExternalGiftID != "" {
		dao.ExternalGiftID = &rec.ExternalGiftID
	}
	if rec.WithdrawnToID != "" {
		dao.WithdrawnToID = &rec.WithdrawnToID
	}
	if rec.LottieURL != "" {
		dao.LottieURL = &rec.LottieURL
	}

	dao.Document = marshalJSONField(rec.Document)
	dao.Model = marshalJSONField(rec.Attributes.Model)
	dao.Backdrop = marshalJSONField(rec.Attributes.Backdrop)
	dao.Pattern = marshalJSONField(rec.Attributes.Pattern)
	dao.OriginalDetails = marshalJSONField(rec.Attributes.Original)

	return dao
}

// toRecord converts a row back to the domain record. Malformed JSONB
// sub-fields are dropped rather than failing the whole read.
func toRecord(dao *GiftDao) *gift.Record {
	rec := &gift.Record{
		ID:          dao.ID,
		Title:       dao.Title,
		FromID:      dao.FromID,
		ReceivedAt:  dao.ReceivedAt,
		IsWithdrawn: dao.IsWithdrawn,
		WithdrawnAt: dao.WithdrawnAt,
		RawPayload:  dao.RawPayload,
		CreatedAt:   dao.CreatedAt,
		UpdatedAt:   dao.UpdatedAt,
	}

	if dao.ExternalGiftID != nil {
		rec.ExternalGiftID = *dao.ExternalGiftID
	}
	if dao.WithdrawnToID != nil {
		rec.WithdrawnToID = *dao.WithdrawnToID
	}
	if dao.LottieURL != nil {
		rec.LottieURL = *dao.LottieURL
	}

	rec.Document = unmarshalJSONField[gift.DocumentRef](dao.Document)
	rec.Attributes.Model = unmarshalJSONField[gift.AttributeDescriptor](dao.Model)
	rec.Attributes.Backdrop = unmarshalJSONField[gift.BackdropDescriptor](dao.Backdrop)
	rec.Attributes.Pattern = unmarshalJSONField[gift.AttributeDescriptor](dao.Pattern)
	rec.Attributes.Original = unmarshalJSONField[gift.OriginalDetails](dao.OriginalDetails)

	return rec
}

func marshalJSONField(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	// Typed nil pointers marshal to "null"; treat those as absent too.
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return data
}

func unmarshalJSONField[T any](data json.RawMessage) *T {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
