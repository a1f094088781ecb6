// Package command wraps resource actions as undoable commands and keeps a
// bounded linear history of them.
package command

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/baseplate/tracker/internal/client/action"
)

type Type string

const (
	TypeCreate     Type = "create"
	TypeUpdate     Type = "update"
	TypeDelete     Type = "delete"
	TypeDuplicate  Type = "duplicate"
	TypeBulkDelete Type = "bulk_delete"
)

// ErrUndoUnavailable is reported when a command has nothing to revert to.
var ErrUndoUnavailable = errors.New("no snapshot available")

// Func performs one direction of a command.
type Func func(ctx context.Context) action.Result

// Command is a single user action. Execute and Undo never return errors;
// every outcome is an action.Result.
type Command struct {
	ID          string
	Type        Type
	ResourceKey string
	Description string
	CanUndo     bool

	execute Func
	undo    Func
}

// New builds a command. A nil undo makes the command irreversible.
func New(typ Type, resourceKey, description string, execute, undo Func) *Command {
	return &Command{
		ID:          uuid.NewString(),
		Type:        typ,
		ResourceKey: resourceKey,
		Description: description,
		CanUndo:     undo != nil,
		execute:     execute,
		undo:        undo,
	}
}

func (c *Command) Execute(ctx context.Context) action.Result {
	return c.execute(ctx)
}

func (c *Command) Undo(ctx context.Context) action.Result {
	if c.undo == nil {
		return action.Result{Error: ErrUndoUnavailable.Error()}
	}
	return c.undo(ctx)
}

// UndoUnavailable reports whether res is the failure returned by Undo on an
// irreversible command.
func UndoUnavailable(res action.Result) bool {
	return !res.Success && res.Error == ErrUndoUnavailable.Error()
}
