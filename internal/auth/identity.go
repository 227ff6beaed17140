package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential marks a request that carried no credential at all.
	ErrNoCredential = errors.New("no credential supplied")
	// ErrCredentialRejected marks a request whose credential was present but
	// failed verification. It never degrades to anonymous access.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrForbidden marks a resource owned by a different subject. Existence
	// is revealed, content is not.
	ErrForbidden = errors.New("resource is owned by someone else")
)

// State distinguishes how a request was (or was not) authenticated.
type State int

const (
	StateAnonymous State = iota
	StateVerified
	StateRejected
)

// Identity is the verified caller identity handed in by the transport
// layer. Anonymous and rejected are distinct: anonymous callers may read
// public resources, rejected credentials hard-fail every operation.
type Identity struct {
	State   State
	Subject string
	Err     error
}

func Anonymous() Identity { return Identity{State: StateAnonymous} }

func Verified(subject string) Identity {
	return Identity{State: StateVerified, Subject: subject}
}

func Rejected(err error) Identity {
	return Identity{State: StateRejected, Err: err}
}

// Rejection returns a credential error when the identity carries a rejected
// credential, nil otherwise. Checked before any read, including public ones.
func (id Identity) Rejection() error {
	if id.State != StateRejected {
		return nil
	}
	if id.Err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialRejected, id.Err)
	}
	return ErrCredentialRejected
}

// RequireSubject returns the verified subject, or an error that tells
// missing credentials apart from rejected ones.
func (id Identity) RequireSubject() (string, error) {
	switch id.State {
	case StateVerified:
		return id.Subject, nil
	case StateRejected:
		return "", id.Rejection()
	default:
		return "", ErrNoCredential
	}
}
