package session

import "CareChat/model"

// pendingSend carries exactly the pre-state an optimistic send needs to roll
// back: the temp id to evict and the composer content to restore. Passing it
// explicitly (instead of capturing in closures) makes the rollback surface
// auditable.
type pendingSend struct {
	tempID      string
	input       string
	attachments []string
}

// reactionOp carries the rollback state of one optimistic reaction mutation.
// Add rolls back by removing, remove rolls back by re-adding the same op.
type reactionOp struct {
	messageID string
	emoji     string
	reactor   model.Reactor
}
