// Package actor provides the stateful actor contract and the wrapper that
// owns an actor's state together with its mailbox.
//
// A stateful actor is any type that can apply queued messages to itself and
// run its own control loop until cancelled:
//
//	type StatefulActor[M any] interface {
//	    Receive(ctx context.Context, rx *mailbox.Mailbox[M])
//	    Run(ctx context.Context, rx *mailbox.Mailbox[M]) error
//	}
//
// The [Wrapper] separates "owning and evolving state" from "being sent
// instructions": it keeps the receiving side of the mailbox private and
// hands out [mailbox.Sender] handles to everyone else.
//
//	w, tx := actor.New[Cmd](myState, actor.Options{MailboxSize: 10})
//	go func() { _ = tx.Send(ctx, Cmd{}) }()
//	err := w.Run(ctx) // returns when the state's loop exits
//
// When Run returns the mailbox is closed, so producers observe
// [mailbox.ErrMailboxClosed] instead of blocking forever.
package actor
