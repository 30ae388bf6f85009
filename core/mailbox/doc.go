// Package mailbox provides a bounded, ordered, multi-producer single-consumer
// queue used to deliver typed messages to exactly one owner.
//
// A [Mailbox] is owned by its consumer. Producers obtain [Sender] handles via
// [Mailbox.Sender] and may either block until there is room ([Sender.Send])
// or fail fast with [ErrMailboxFull] ([Sender.TrySend]):
//
//	mb := mailbox.New[Cmd](10)
//	tx := mb.Sender()
//
//	// backpressure the caller
//	err := tx.Send(ctx, Cmd{})
//
//	// drop when the consumer is behind
//	if err := tx.TrySend(Cmd{}); errors.Is(err, mailbox.ErrMailboxFull) {
//	    log.Warn("dropped command")
//	}
//
// Closing the mailbox is the consumer's way of going away: all blocked and
// future sends fail with [ErrMailboxClosed] and [Sender.Done] is closed.
package mailbox
