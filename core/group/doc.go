// Package group runs a set of concurrent tasks to completion under one of two
// structured-concurrency disciplines.
//
//   - [Join] evaluates a fixed set of tasks concurrently in a single call.
//     Tasks may borrow from the caller's stack: nothing outlives the call.
//   - [Pool] spawns tasks one by one as independently owned units of work
//     and joins them at the end with [Pool.Wait].
//
// Both report task errors (panics included) as the joined error of all
// failed tasks. Neither cancels anything by itself: cancellation is the
// tasks' business, usually through a shared [cancel.Token].
//
//	err := group.Run(ctx, group.SpawnDiscipline, group.Options{},
//	    group.Task{Name: "plant", Run: plantLoop},
//	    group.Task{Name: "target", Run: targetLoop},
//	)
//
// [cancel.Token]: github.com/codewandler/ctrlloop-go/core/cancel.Token
package group
