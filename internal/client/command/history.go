package command

import (
	"context"
	"sync"

	"github.com/baseplate/tracker/config"
	"github.com/baseplate/tracker/internal/client/action"
)

// DefaultHistoryLimit applies when NewHistory gets a non-positive limit.
const DefaultHistoryLimit = 50

// History is a linear undo stack. Executing after an undo discards the
// commands that could have been redone.
//
// Execute, Undo, Redo and Clear are serialized: one runs to completion,
// remote call included, before the next starts.
type History struct {
	run sync.Mutex

	mu       sync.Mutex
	commands []*Command
	current  int
	limit    int
}

// NewHistoryFromConfig sizes the history from the client configuration.
func NewHistoryFromConfig(cfg config.ClientConfig) *History {
	return NewHistory(cfg.HistoryLimit)
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{current: -1, limit: limit}
}

// Execute runs cmd and records it on success.
func (h *History) Execute(ctx context.Context, cmd *Command) action.Result {
	h.run.Lock()
	defer h.run.Unlock()

	res := cmd.Execute(ctx)
	if !res.Success {
		return res
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands[:h.current+1], cmd)
	if len(h.commands) > h.limit {
		h.commands[0] = nil
		h.commands = h.commands[1:]
	}
	h.current = len(h.commands) - 1
	return res
}

// Undo reverts the current command. The position only moves when the revert
// succeeds.
func (h *History) Undo(ctx context.Context) action.Result {
	h.run.Lock()
	defer h.run.Unlock()

	h.mu.Lock()
	if h.current < 0 {
		h.mu.Unlock()
		return action.Failure("nothing to undo")
	}
	cmd := h.commands[h.current]
	h.mu.Unlock()

	res := cmd.Undo(ctx)
	if res.Success {
		h.mu.Lock()
		h.current--
		h.mu.Unlock()
	}
	return res
}

// Redo re-executes the next undone command.
func (h *History) Redo(ctx context.Context) action.Result {
	h.run.Lock()
	defer h.run.Unlock()

	h.mu.Lock()
	if h.current >= len(h.commands)-1 {
		h.mu.Unlock()
		return action.Failure("nothing to redo")
	}
	cmd := h.commands[h.current+1]
	h.mu.Unlock()

	res := cmd.Execute(ctx)
	if res.Success {
		h.mu.Lock()
		h.current++
		h.mu.Unlock()
	}
	return res
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current >= 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current < len(h.commands)-1
}

func (h *History) Clear() {
	h.run.Lock()
	defer h.run.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = nil
	h.current = -1
}

// Len reports how many commands are recorded, including undone ones.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.commands)
}

// Peek returns the command Undo would revert, or nil.
func (h *History) Peek() *Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current < 0 {
		return nil
	}
	return h.commands[h.current]
}
