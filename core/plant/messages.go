package plant

import (
	"fmt"

	"github.com/codewandler/ctrlloop-go/core/mailbox"
)

type (
	// In is the set of commands the plant accepts.
	In interface {
		plantIn()
		Kind() string
	}

	// SetVelocity replaces the plant's velocity.
	SetVelocity struct {
		Velocity float64
	}

	// RegisterSubscriber adds a recipient for position updates.
	RegisterSubscriber struct {
		Subscriber *mailbox.Sender[float64]
	}
)

func (SetVelocity) plantIn()        {}
func (RegisterSubscriber) plantIn() {}

func (SetVelocity) Kind() string        { return "set_velocity" }
func (RegisterSubscriber) Kind() string { return "register_subscriber" }

func (m SetVelocity) String() string { return fmt.Sprintf("SetVelocity(%g)", m.Velocity) }
