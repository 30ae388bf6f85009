package nats

import "time"

// PositionUpdate is published on <prefix>.position for every plant tick.
type PositionUpdate struct {
	Seq      uint64    `json:"seq"`
	Position float64   `json:"position"`
	Time     time.Time `json:"time"`
}

// VelocityCommand is accepted on <prefix>.velocity.
type VelocityCommand struct {
	Velocity float64 `json:"velocity"`
}

// CommandReply answers a VelocityCommand sent as a request.
type CommandReply struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

const (
	defaultSubjectPrefix = "ctrlloop"
	headerContentType    = "Content-Type"
)

func subject(prefix, name string) string {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return prefix + "." + name
}
