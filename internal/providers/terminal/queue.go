package terminal

// Queue is the FIFO of commands waiting for a session's shell. It holds the
// live result channels of its callers and is owned by the session loop.
type Queue struct {
	items []*pendingCommand
}

// Push appends a command to the tail.
func (q *Queue) Push(cmd *pendingCommand) {
	q.items = append(q.items, cmd)
}

// Pop removes and returns the head, or nil when empty.
func (q *Queue) Pop() *pendingCommand {
	if len(q.items) == 0 {
		return nil
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return cmd
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.items)
}

// Drain removes and returns every queued command in order.
func (q *Queue) Drain() []*pendingCommand {
	items := q.items
	q.items = nil
	return items
}
