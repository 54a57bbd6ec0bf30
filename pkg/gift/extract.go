package gift

import (
	"time"

	"github.com/alged/giftstream/pkg/telegram"
)

// Extract decodes a raw gift payload into canonical Attributes. It never
// fails: unrecognized attribute tags are skipped and malformed sub-fields
// are simply omitted from the result, so a gift record always persists even
// when the payload schema has moved ahead of this decoder.
func Extract(payload *telegram.StarGiftPayload) Attributes {
	var attrs Attributes
	if payload == nil {
		return attrs
	}

	for i := range payload.Attributes {
		a := &payload.Attributes[i]
		switch a.Type {
		case telegram.AttrModel:
			attrs.Model = &AttributeDescriptor{
				Name:           a.Name,
				Document:       DocumentRefFromRaw(a.Document),
				RarityPermille: a.RarityPermille,
			}
		case telegram.AttrBackdrop:
			attrs.Backdrop = &BackdropDescriptor{
				Name:           a.Name,
				BackdropID:     a.BackdropID,
				CenterColor:    HexColor(a.CenterColor),
				EdgeColor:      HexColor(a.EdgeColor),
				PatternColor:   HexColor(a.PatternColor),
				TextColor:      HexColor(a.TextColor),
				RarityPermille: a.RarityPermille,
			}
		case telegram.AttrPattern:
			attrs.Pattern = &AttributeDescriptor{
				Name:           a.Name,
				Document:       DocumentRefFromRaw(a.Document),
				RarityPermille: a.RarityPermille,
			}
		case telegram.AttrOriginalDetails:
			attrs.Original = extractOriginalDetails(a)
		}
	}

	return attrs
}

// DocumentRefFromRaw normalizes a raw document into a DocumentRef: content
// type derived from the declared media type and dimensions recovered from
// the size attribute variants, defaulting to 512x512 when none is present.
func DocumentRefFromRaw(doc *telegram.Document) *DocumentRef {
	if doc == nil || doc.ID == "" {
		return nil
	}

	ref := &DocumentRef{
		ID:          doc.ID,
		AccessHash:  doc.AccessHash,
		MIMEType:    doc.MimeType,
		ContentType: ContentTypeFromMIME(doc.MimeType),
		Width:       defaultDocumentSize,
		Height:      defaultDocumentSize,
	}

	for _, attr := range doc.Attributes {
		if attr.Type != telegram.DocAttrImageSize && attr.Type != telegram.DocAttrVideo {
			continue
		}
		if attr.W > 0 {
			ref.Width = attr.W
		}
		if attr.H > 0 {
			ref.Height = attr.H
		}
	}

	return ref
}

func extractOriginalDetails(a *telegram.GiftAttr) *OriginalDetails {
	details := &OriginalDetails{
		SenderID:    a.SenderID.ID(),
		RecipientID: a.RecipientID.ID(),
		Message:     a.Message,
	}
	if a.Date > 0 {
		details.Date = time.Unix(a.Date, 0).UTC()
	}
	return details
}
