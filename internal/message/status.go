package message

import (
	"errors"
	"fmt"
)

// Status is the delivery state of one copy of a message.
type Status string

const (
	StatusNone      Status = "none"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status][]Status{
	StatusNone:      {StatusSent},
	StatusSent:      {StatusDelivered, StatusSeen},
	StatusDelivered: {StatusSeen},
}

// ParseStatus returns the status named s.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNone, StatusSent, StatusDelivered, StatusSeen:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrMalformed, s)
}

// CanTransition reports whether a copy in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next, or ErrInvalidTransition if s cannot move to it.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// StatusOf reads the raw status field of an undecoded record. ok is false
// when the field is absent.
func StatusOf(rec map[string]any) (status string, ok bool) {
	v, present := rec["status"]
	if !present || v == nil {
		return "", false
	}
	s, isString := v.(string)
	if !isString {
		return fmt.Sprint(v), true
	}
	return s, true
}
