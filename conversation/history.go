package conversation

import "github.com/zjx20/gemini-relay/gemini"

// History is a FIFO window over the most recent turns of one conversation.
// A limit of 0 keeps nothing.
type History struct {
	limit int
	turns []gemini.Message
}

func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

// Append adds a turn and evicts the oldest ones once the window is
// exceeded. It returns the number of evicted turns.
func (h *History) Append(m gemini.Message) int {
	h.turns = append(h.turns, m)
	evicted := 0
	for len(h.turns) > h.limit {
		h.turns = h.turns[1:]
		evicted++
	}
	return evicted
}

// Snapshot returns a copy of the window, oldest first.
func (h *History) Snapshot() []gemini.Message {
	out := make([]gemini.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Restore replaces the window with turns previously returned by Snapshot.
func (h *History) Restore(turns []gemini.Message) {
	h.turns = append(h.turns[:0:0], turns...)
}

func (h *History) Len() int { return len(h.turns) }

func (h *History) Limit() int { return h.limit }
