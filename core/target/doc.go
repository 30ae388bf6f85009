// Package target implements the controller side of the control loop.
//
// A [Target] subscribes to the plant's position broadcast and, on its own
// tick, sends a proportional velocity command back to the plant:
//
//	diff := (setpoint - position) * gain
//	if |diff| < deadband: command 0
//	else:                 command clamp(diff, -maxVelocity, maxVelocity)
//
// Registration and the final stop command are blocking sends bounded by
// [Options.SendTimeout]. Periodic corrections use a non-blocking send: a
// dropped correction is harmless because the next tick computes a fresh one.
// The plant disappearing is fatal and reported through [Options.OnFatal].
package target
