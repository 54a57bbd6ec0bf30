// Package gift holds the canonical domain model for collectible gifts and
// the pure codecs that turn raw platform payloads into it.
package gift

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/alged/giftstream/pkg/telegram"
)

// ContentType classifies a document's binary content.
type ContentType string

const (
	ContentStatic  ContentType = "static"
	ContentLottie  ContentType = "lottie"
	ContentVideo   ContentType = "video"
	ContentUnknown ContentType = "unknown"
)

// ContentTypeFromMIME maps a declared media type onto a ContentType.
func ContentTypeFromMIME(mime string) ContentType {
	switch mime {
	case "image/webp":
		return ContentStatic
	case "application/x-tgsticker":
		return ContentLottie
	case "video/webm":
		return ContentVideo
	default:
		return ContentUnknown
	}
}

// FileExtension returns the storage extension for a content type.
func FileExtension(ct ContentType) string {
	switch ct {
	case ContentStatic:
		return ".webp"
	case ContentLottie:
		return ".tgs"
	case ContentVideo:
		return ".webm"
	default:
		return ".bin"
	}
}

const defaultDocumentSize = 512

// DocumentRef references a binary asset owned by the platform. ID and
// AccessHash are opaque tokens.
type DocumentRef struct {
	ID          string      `json:"id"`
	AccessHash  string      `json:"access_hash"`
	MIMEType    string      `json:"mime_type"`
	ContentType ContentType `json:"content_type"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
}

// AttributeDescriptor describes a model or pattern attribute of a unique gift.
type AttributeDescriptor struct {
	Name           string       `json:"name"`
	Document       *DocumentRef `json:"document,omitempty"`
	RarityPermille int          `json:"rarity_permille,omitempty"`
}

// BackdropDescriptor describes the backdrop attribute, colors already
// normalized to #rrggbb.
type BackdropDescriptor struct {
	Name           string `json:"name"`
	BackdropID     int    `json:"backdrop_id,omitempty"`
	CenterColor    string `json:"center_color"`
	EdgeColor      string `json:"edge_color"`
	PatternColor   string `json:"pattern_color"`
	TextColor      string `json:"text_color"`
	RarityPermille int    `json:"rarity_permille,omitempty"`
}

// OriginalDetails is present on unique gifts that were transferred before.
type OriginalDetails struct {
	SenderID    string    `json:"sender_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty"`
	Date        time.Time `json:"date,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Attributes is the canonical decoded attribute set of a gift. Any field may
// be nil: extraction degrades to the subset it could parse.
type Attributes struct {
	Model    *AttributeDescriptor `json:"model,omitempty"`
	Backdrop *BackdropDescriptor  `json:"backdrop,omitempty"`
	Pattern  *AttributeDescriptor `json:"pattern,omitempty"`
	Original *OriginalDetails     `json:"original_details,omitempty"`
}

// Record is the canonical persisted gift entity.
type Record struct {
	ID             uuid.UUID       `json:"id"`
	ExternalGiftID string          `json:"external_gift_id,omitempty"` // empty for legacy gifts; the dedup key otherwise
	Title          string          `json:"title"`
	Document       *DocumentRef    `json:"document,omitempty"` // main sticker document, plain gifts mostly
	Attributes     Attributes      `json:"attributes"`
	FromID         string          `json:"from_id"`
	ReceivedAt     time.Time       `json:"received_at"`
	IsWithdrawn    bool            `json:"is_withdrawn"`
	WithdrawnAt    *time.Time      `json:"withdrawn_at,omitempty"`
	WithdrawnToID  string          `json:"withdrawn_to_id,omitempty"`
	LottieURL      string          `json:"lottie_url,omitempty"`
	RawPayload     json.RawMessage `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Documents returns every document reference the record carries, main
// document first. Used to fan out asset materialization.
func (r *Record) Documents() []DocumentRef {
	var refs []DocumentRef
	if r.Document != nil {
		refs = append(refs, *r.Document)
	}
	if m := r.Attributes.Model; m != nil && m.Document != nil {
		refs = append(refs, *m.Document)
	}
	if p := r.Attributes.Pattern; p != nil && p.Document != nil {
		refs = append(refs, *p.Document)
	}
	return refs
}

// Direction tells whether a classified gift event is a receipt or a
// withdrawal.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Event is the classifier's output for an update that carries a gift action.
type Event struct {
	Direction      Direction
	ExternalGiftID string
	FromID         string
	ToID           string // withdrawal counterparty for outgoing events
	ReceivedAt     time.Time
	Payload        *telegram.StarGiftPayload
}
