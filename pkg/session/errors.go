package session

import "errors"

var (
	// ErrNoActiveSession is returned by operations that need an active
	// client session.
	ErrNoActiveSession = errors.New("session: no active session")
	// ErrSessionBusy is returned when another mutating call on the same
	// manager is still in flight.
	ErrSessionBusy = errors.New("session: another operation is in flight")
	// ErrSessionNotFound is returned when the backend has no saved session
	// with the requested id.
	ErrSessionNotFound = errors.New("session: saved session not found")
	// ErrUnknownParticipant is returned for a participant id that is not
	// registered in the current match session.
	ErrUnknownParticipant = errors.New("session: unknown participant")
	// ErrParticipantRegistered is returned when a participant id is
	// registered twice.
	ErrParticipantRegistered = errors.New("session: participant already registered")
	// ErrMatchSessionActive is returned when a match session is opened while
	// another is still open.
	ErrMatchSessionActive = errors.New("session: match session already open")
	// ErrNoMatchSession is returned when no match session is open.
	ErrNoMatchSession = errors.New("session: no match session open")
)
