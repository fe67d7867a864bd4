package domain

import (
	"strings"
)

// transientPhrases are the error fragments the venue transport emits when a
// stream drops for network reasons. Matching one means the operation is
// worth retrying after a backoff.
var transientPhrases = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"use of closed network connection",
	"unexpected eof",
	"i/o timeout",
	"websocket: close",
	"status = statusabnormalclosure",
	"failed to get reader",
	"eof",
}

// IsTransient reports whether err looks like a recoverable network or stream
// failure rather than a venue rejection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
