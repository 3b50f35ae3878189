package txdb

import "context"

// UndoCommand is the interface a host undo manager implements against
// the before/after snapshots TransactionWithSnapshots returns: Forward
// re-applies the transaction's effect (restoring the "after" snapshot),
// Backward reverts it (restoring the "before" snapshot). This package
// never constructs an UndoCommand itself; besides the interface it offers
// one ready-made implementation, SnapshotUndoCommand, for callers to build.
type UndoCommand interface {
	Forward(ctx context.Context) error
	Backward(ctx context.Context) error
}

// UndoStack is the minimal collaborator a host undo manager offers: a
// place to push a freshly completed transaction's UndoCommand.
type UndoStack interface {
	Push(UndoCommand)
}

// SnapshotUndoCommand is a ready-made UndoCommand built directly from the
// before/after pair TransactionWithSnapshots returns, restoring db to one
// or the other. Callers are free to implement their own UndoCommand
// instead; this is offered because restoring a Snapshot is the one
// Forward/Backward implementation every caller would otherwise have to
// write themselves.
type SnapshotUndoCommand struct {
	DB            *Database
	Before, After Snapshot
}

func (c SnapshotUndoCommand) Forward(_ context.Context) error {
	c.DB.RestoreSnapshot(c.After)
	return nil
}

func (c SnapshotUndoCommand) Backward(_ context.Context) error {
	c.DB.RestoreSnapshot(c.Before)
	return nil
}
