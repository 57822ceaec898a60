package model

import (
	"fmt"
	"strings"

	"depthScope/internal/exception"
)

// DecodeError records a message or log that could not be decoded. It matches
// exception.ErrDecode with errors.Is.
type DecodeError struct {
	Venue       string
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
	Address     string
	Topic0      string
	Reason      string
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "decode %s", e.Venue)
	if e.Address != "" {
		fmt.Fprintf(&b, " log %s#%d block=%d topic0=%s", e.TxHash, e.LogIndex, e.BlockNumber, e.Topic0)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

func (e *DecodeError) Unwrap() error { return exception.ErrDecode }
