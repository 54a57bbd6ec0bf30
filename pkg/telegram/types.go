// Package telegram defines the boundary to the messaging platform: the raw
// update payloads delivered over an already-authenticated session and the
// Client interface the pipeline consumes.
package telegram

// Update payloads are polymorphic: every object carries a "_" discriminator
// naming its constructor, mirroring the platform's own schema. Only the
// constructors the pipeline cares about are modeled; everything else is
// carried through RawPayload untouched.
const (
	UpdateNewMessage        = "updateNewMessage"
	UpdateBotNewMessage     = "updateNewBusinessMessage"
	MessageActionGift       = "messageActionStarGift"
	MessageActionGiftUnique = "messageActionStarGiftUnique"

	GiftPlain  = "starGift"
	GiftUnique = "starGiftUnique"

	AttrModel           = "starGiftAttributeModel"
	AttrBackdrop        = "starGiftAttributeBackdrop"
	AttrPattern         = "starGiftAttributePattern"
	AttrOriginalDetails = "starGiftAttributeOriginalDetails"

	DocAttrImageSize = "documentAttributeImageSize"
	DocAttrVideo     = "documentAttributeVideo"

	PeerUser    = "peerUser"
	PeerChannel = "peerChannel"
)

// Update is one raw notification from the live update stream.
type Update struct {
	Type string `json:"_"`
	// Message wraps the gift action for updateNewMessage shapes.
	Message *Message `json:"message,omitempty"`
	// Action is set when some platform versions deliver the action without
	// a wrapping message.
	Action *MessageAction `json:"action,omitempty"`
}

// Message is the platform message embedded in a new-message update.
type Message struct {
	ID     int64          `json:"id"`
	Out    bool           `json:"out"`
	Date   int64          `json:"date"`
	FromID *Peer          `json:"from_id,omitempty"`
	PeerID *Peer          `json:"peer_id,omitempty"`
	Action *MessageAction `json:"action,omitempty"`
	Text   string         `json:"message,omitempty"`
}

// Peer identifies a user or channel. IDs are opaque tokens; the wire encodes
// them numerically but they are never treated as arithmetic values.
type Peer struct {
	Type      string `json:"_"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// ID returns whichever identifier variant the peer carries.
func (p *Peer) ID() string {
	if p == nil {
		return ""
	}
	if p.UserID != "" {
		return p.UserID
	}
	return p.ChannelID
}

// MessageAction is the action attached to a service message. Gift transfers
// arrive as messageActionStarGift (plain/star gifts) or
// messageActionStarGiftUnique (collectible gifts).
type MessageAction struct {
	Type   string           `json:"_"`
	Gift   *StarGiftPayload `json:"gift,omitempty"`
	FromID *Peer            `json:"from_id,omitempty"`
	Peer   *Peer            `json:"peer,omitempty"`
	// Upgrade/transfer bookkeeping, present on some revisions.
	TransferStars int64 `json:"transfer_stars,omitempty"`
}

// StarGiftPayload is the polymorphic gift body: starGift carries a title and
// a single sticker document, starGiftUnique carries a rarity attribute list.
type StarGiftPayload struct {
	Type       string     `json:"_"`
	ID         string     `json:"id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Slug       string     `json:"slug,omitempty"`
	Num        int        `json:"num,omitempty"`
	Document   *Document  `json:"document,omitempty"`
	Attributes []GiftAttr `json:"attributes,omitempty"`
	OwnerID    *Peer      `json:"owner_id,omitempty"`
}

// GiftAttr is one element of a unique gift's attribute list. Fields are a
// union over all attribute constructors; the Type tag decides which subset
// is meaningful.
type GiftAttr struct {
	Type           string    `json:"_"`
	Name           string    `json:"name,omitempty"`
	Document       *Document `json:"document,omitempty"`
	RarityPermille int       `json:"rarity_permille,omitempty"`

	// Backdrop colors, 24-bit integers.
	BackdropID   int    `json:"backdrop_id,omitempty"`
	CenterColor  uint32 `json:"center_color,omitempty"`
	EdgeColor    uint32 `json:"edge_color,omitempty"`
	PatternColor uint32 `json:"pattern_color,omitempty"`
	TextColor    uint32 `json:"text_color,omitempty"`

	// Original details for previously-transferred gifts.
	SenderID    *Peer  `json:"sender_id,omitempty"`
	RecipientID *Peer  `json:"recipient_id,omitempty"`
	Date        int64  `json:"date,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Document references a binary asset held by the platform.
type Document struct {
	ID         string         `json:"id"`
	AccessHash string         `json:"access_hash"`
	MimeType   string         `json:"mime_type"`
	Size       int64          `json:"size,omitempty"`
	Attributes []DocumentAttr `json:"attributes,omitempty"`
}

// DocumentAttr carries per-document metadata such as declared dimensions.
type DocumentAttr struct {
	Type string `json:"_"`
	W    int    `json:"w,omitempty"`
	H    int    `json:"h,omitempty"`
}

// SavedGift is one entry of the account's gift history, as returned by the
// paginated full fetch the reconciler replays.
type SavedGift struct {
	FromID *Peer            `json:"from_id,omitempty"`
	Date   int64            `json:"date"`
	MsgID  int64            `json:"msg_id,omitempty"`
	Gift   *StarGiftPayload `json:"gift"`
}

// SavedGiftsPage is one page of gift history. NextOffset is empty on the
// final page.
type SavedGiftsPage struct {
	Count      int         `json:"count"`
	Gifts      []SavedGift `json:"gifts"`
	NextOffset string      `json:"next_offset,omitempty"`
}
