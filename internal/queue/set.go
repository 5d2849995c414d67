package queue

import "github.com/skirmish-gg/skirmish/internal/model"

// Set bundles the two queues and enforces the membership invariant: a
// session is in at most one queue at any instant.
type Set struct {
	Simple *Queue
	Ranked *Queue
}

// NewSet creates the simple and ranked queues.
func NewSet() *Set {
	return &Set{
		Simple: New(KindSimple),
		Ranked: New(KindRanked),
	}
}

// Enqueue places a session into the queue for the given kind. It fails
// with model.ErrAlreadyQueued when the session is already in either queue.
func (qs *Set) Enqueue(s *model.Session, kind Kind) error {
	if qs.Member(s.Name) {
		return model.ErrAlreadyQueued
	}
	switch kind {
	case KindRanked:
		qs.Ranked.Add(s)
	default:
		qs.Simple.Add(s)
	}
	return nil
}

// Member reports whether the named session sits in either queue.
func (qs *Set) Member(name string) bool {
	return qs.Simple.Contains(name) || qs.Ranked.Contains(name)
}

// FindByToken scans both queues for a session holding the token.
func (qs *Set) FindByToken(token string) *model.Session {
	if s := qs.Simple.FindByToken(token); s != nil {
		return s
	}
	return qs.Ranked.FindByToken(token)
}

// Remove deletes the session from whichever queue holds it.
func (qs *Set) Remove(s *model.Session) bool {
	return qs.Simple.Remove(s) || qs.Ranked.Remove(s)
}

// Close releases all matcher waits.
func (qs *Set) Close() {
	qs.Simple.Close()
	qs.Ranked.Close()
}
