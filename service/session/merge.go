package session

import "CareChat/model"

// Merge folds one incoming message into the ordered list: an existing id is
// replaced in place (preserving position, used for edits and re-delivered
// creates), an unknown id is appended. Replacing a temp id with its confirmed
// counterpart is handled explicitly by the send reconciliation, not here.
func Merge(list []model.Message, msg model.Message) []model.Message {
	if msg.ID == "" {
		return list
	}
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			return list
		}
	}
	return append(list, msg)
}

// Dedupe restores the one-entry-per-id invariant: first occurrence wins,
// order is otherwise preserved, and entries without an id are dropped. It
// runs as the final pass after every list mutation, which keeps the list
// correct even under a stream-push racing an optimistic send.
func Dedupe(list []model.Message) []model.Message {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, m := range list {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
