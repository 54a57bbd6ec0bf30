package gift

import (
	"time"

	"github.com/alged/giftstream/pkg/telegram"
)

// Classify inspects one raw update and returns a gift Event when the update
// carries a gift-transfer action, or nil otherwise. The nil path is the
// overwhelmingly common one and is kept allocation-free.
//
// Counterparty resolution order is deterministic: the message's direct
// sender identity wins, then the message's peer identity, then the action's
// own party field. When none resolve the event still goes through with
// FromID "unknown" — attribute enrichment failures never drop a gift.
func Classify(u *telegram.Update) *Event {
	if u == nil {
		return nil
	}

	msg, action := giftAction(u)
	if action == nil || action.Gift == nil {
		return nil
	}

	ev := &Event{
		Direction:      DirectionIncoming,
		ExternalGiftID: action.Gift.ID,
		Payload:        action.Gift,
		ReceivedAt:     time.Now().UTC(),
	}

	if msg != nil {
		if msg.Out {
			ev.Direction = DirectionOutgoing
		}
		if msg.Date > 0 {
			ev.ReceivedAt = time.Unix(msg.Date, 0).UTC()
		}
	}

	counterparty := resolveCounterparty(msg, action)
	if ev.Direction == DirectionOutgoing {
		ev.ToID = counterparty
	} else {
		ev.FromID = counterparty
	}

	return ev
}

// giftAction pulls the gift action out of either recognized update shape:
// a new-message update whose message carries the action, or an action
// embedded directly on the update (older platform revisions).
func giftAction(u *telegram.Update) (*telegram.Message, *telegram.MessageAction) {
	switch u.Type {
	case telegram.UpdateNewMessage, telegram.UpdateBotNewMessage:
		if u.Message != nil && isGiftAction(u.Message.Action) {
			return u.Message, u.Message.Action
		}
	default:
		if isGiftAction(u.Action) {
			return u.Message, u.Action
		}
	}
	return nil, nil
}

func isGiftAction(a *telegram.MessageAction) bool {
	if a == nil {
		return false
	}
	return a.Type == telegram.MessageActionGift || a.Type == telegram.MessageActionGiftUnique
}

func resolveCounterparty(msg *telegram.Message, action *telegram.MessageAction) string {
	if msg != nil {
		if id := msg.FromID.ID(); id != "" {
			return id
		}
		if id := msg.PeerID.ID(); id != "" {
			return id
		}
	}
	if id := action.FromID.ID(); id != "" {
		return id
	}
	if id := action.Peer.ID(); id != "" {
		return id
	}
	return "unknown"
}
