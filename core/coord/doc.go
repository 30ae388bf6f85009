// Package coord wires a plant and its controller together and runs them,
// plus a shutdown-signal listener and optional bridges, as one structured
// group.
//
//	c, err := coord.New(coord.Options{
//	    Plant:  plant.Options{Tick: 100 * time.Millisecond},
//	    Target: target.Options{Params: target.Params{Setpoint: 10, MaxVelocity: 1, Gain: 1, Deadband: 0.01}},
//	})
//	if err != nil {
//	    return err
//	}
//	err = c.Run(ctx) // nil after a normal shutdown
//
// All participants share one [cancel.Token]. Triggering it (SIGINT/SIGTERM,
// [Coordinator.Stop], the parent context, or a fatal error in any
// participant) stops everything within one tick. The plant is stopped last,
// after the controller has sent its final zero-velocity command.
//
// The group discipline ([group.JoinDiscipline] or [group.SpawnDiscipline])
// is an implementation choice with identical observable behavior.
package coord
