package chat

import (
	"time"

	"github.com/amorhq/amor-core/internal/db"
)

// Entry is one line of an open chat: either a Pending local echo that
// has no server identity yet, or the Confirmed canonical row.
type Entry struct {
	Pending bool       `json:"pending"`
	TempID  string     `json:"temp_id,omitempty"`
	Message db.Message `json:"message"`
}

// Reconcile merges a confirmed row into the list: the first pending
// entry with the same sender and content is removed, and the canonical
// row is appended unless it is already present.
//
// Matching is by content, not temp id, because the realtime echo and the
// send's own response race freely; whichever arrives first must leave
// exactly one entry behind, the other a no-op.
func Reconcile(entries []Entry, confirmed db.Message) []Entry {
	present := false
	for _, e := range entries {
		if !e.Pending && e.Message.ID == confirmed.ID {
			present = true
			break
		}
	}

	out := make([]Entry, 0, len(entries)+1)
	dropped := false
	for _, e := range entries {
		if !dropped && e.Pending &&
			e.Message.SenderID == confirmed.SenderID &&
			e.Message.Content == confirmed.Content {
			dropped = true
			continue
		}
		out = append(out, e)
	}
	if !present {
		out = append(out, Entry{Message: confirmed})
	}
	return out
}

// DropPending removes the pending entry with the given temp id. Used on
// a failed persistent write to roll the speculative echo back.
func DropPending(entries []Entry, tempID string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Pending && e.TempID == tempID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ApplyRead patches read_at onto the listed message ids. Unknown ids are
// ignored: a read receipt may cover messages outside the loaded page.
func ApplyRead(entries []Entry, ids []string, readAt time.Time) []Entry {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range entries {
		if entries[i].Pending {
			continue
		}
		if _, ok := set[entries[i].Message.ID]; ok && entries[i].Message.ReadAt == nil {
			at := readAt
			entries[i].Message.ReadAt = &at
		}
	}
	return entries
}
