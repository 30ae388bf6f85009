package mailbox

import "errors"

var (
	ErrMailboxFull   = errors.New("mailbox full")
	ErrMailboxClosed = errors.New("mailbox closed")
)
