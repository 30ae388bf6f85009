// Package plant implements the plant side of the control loop: a process
// with one scalar position driven by a settable velocity.
//
// Every tick the plant integrates its position with a fixed nominal step,
// pushes the new position to each live subscriber, drops subscribers whose
// mailbox has been closed, and then applies all queued commands ([In]).
// Between ticks it waits for either the next tick or cancellation.
//
// The plant never broadcasts on shutdown. Commands already queued when it is
// cancelled are still applied, so a final SetVelocity{0} sent before the
// plant is stopped is reflected in its last [State].
package plant
