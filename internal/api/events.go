package api

import (
	"encoding/json"
	"fmt"

	"github.com/nikbrunner/bmsync/internal/model"
)

// EventKind identifies which push channel an Event arrived on.
type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventEdited
	EventDeleted
	EventBatchDeleted
)

// EventKinds lists every push channel in subscription order.
var EventKinds = []EventKind{EventCreated, EventEdited, EventDeleted, EventBatchDeleted}

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventEdited:
		return "edited"
	case EventDeleted:
		return "deleted"
	case EventBatchDeleted:
		return "batch-deleted"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Field returns the subscription root field for the kind.
func (k EventKind) Field() string {
	switch k {
	case EventCreated:
		return "onCreateBookmark"
	case EventEdited:
		return "onEditBookmark"
	case EventDeleted:
		return "onDeleteBookmark"
	case EventBatchDeleted:
		return "onBatchDeleteBookmarks"
	default:
		return ""
	}
}

// Document returns the subscription document for the kind.
func (k EventKind) Document() string {
	switch k {
	case EventCreated:
		return OnCreateBookmarkSubscription
	case EventEdited:
		return OnEditBookmarkSubscription
	case EventDeleted:
		return OnDeleteBookmarkSubscription
	case EventBatchDeleted:
		return OnBatchDeleteBookmarksSubscription
	default:
		return ""
	}
}

// KindForField maps a subscription root field back to its kind.
func KindForField(field string) (EventKind, bool) {
	for _, k := range EventKinds {
		if k.Field() == field {
			return k, true
		}
	}
	return 0, false
}

// KindForMutation maps a mutation root field to the push channel it triggers.
func KindForMutation(field string) (EventKind, bool) {
	switch field {
	case "createBookmark":
		return EventCreated, true
	case "editBookmark":
		return EventEdited, true
	case "deleteBookmark":
		return EventDeleted, true
	case "batchDeleteBookmarks":
		return EventBatchDeleted, true
	}
	return 0, false
}

// Event is one push notification.
// Bookmark is set for Created and Edited; Deleted for Deleted and BatchDeleted.
type Event struct {
	Kind     EventKind
	Bookmark model.Bookmark
	Deleted  []model.DeletedBookmark
}

// DeletedIDs returns the ids removed by a Deleted or BatchDeleted event.
func (e Event) DeletedIDs() []string {
	return model.DeletedIDs(e.Deleted)
}

// DecodeEvent decodes the payload of a subscription field.
// It reports false for a null payload.
func DecodeEvent(kind EventKind, raw json.RawMessage) (Event, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Event{}, false, nil
	}

	ev := Event{Kind: kind}
	switch kind {
	case EventCreated, EventEdited:
		if err := json.Unmarshal(raw, &ev.Bookmark); err != nil {
			return Event{}, false, fmt.Errorf("decode %s payload: %w", kind.Field(), err)
		}
	case EventDeleted:
		var d model.DeletedBookmark
		if err := json.Unmarshal(raw, &d); err != nil {
			return Event{}, false, fmt.Errorf("decode %s payload: %w", kind.Field(), err)
		}
		ev.Deleted = []model.DeletedBookmark{d}
	case EventBatchDeleted:
		var list []*model.DeletedBookmark
		if err := json.Unmarshal(raw, &list); err != nil {
			return Event{}, false, fmt.Errorf("decode %s payload: %w", kind.Field(), err)
		}
		for _, d := range list {
			if d != nil {
				ev.Deleted = append(ev.Deleted, *d)
			}
		}
	default:
		return Event{}, false, fmt.Errorf("unknown event kind %d", int(kind))
	}
	return ev, true, nil
}
