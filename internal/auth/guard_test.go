package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanRead(t *testing.T) {
	owner := Verified("u1")
	other := Verified("u2")

	// private: owner only
	require.True(t, CanRead("u1", false, owner))
	require.False(t, CanRead("u1", false, other))
	require.False(t, CanRead("u1", false, Anonymous()))
	require.False(t, CanRead("u1", false, Rejected(errors.New("bad signature"))))

	// public: anyone, including anonymous
	require.True(t, CanRead("u1", true, owner))
	require.True(t, CanRead("u1", true, other))
	require.True(t, CanRead("u1", true, Anonymous()))
}

func TestCanWrite(t *testing.T) {
	require.True(t, CanWrite("u1", Verified("u1")))
	require.False(t, CanWrite("u1", Verified("u2")))
	require.False(t, CanWrite("u1", Anonymous()))
	// public visibility never grants writes, and a rejected credential with
	// a matching subject still cannot write
	require.False(t, CanWrite("u1", Identity{State: StateRejected, Subject: "u1"}))
}

func TestDenyRead(t *testing.T) {
	require.ErrorIs(t, DenyRead(Anonymous()), ErrNoCredential)
	require.ErrorIs(t, DenyRead(Rejected(errors.New("expired"))), ErrCredentialRejected)
	require.ErrorIs(t, DenyRead(Verified("u2")), ErrForbidden)
}

func TestRejection(t *testing.T) {
	require.NoError(t, Anonymous().Rejection())
	require.NoError(t, Verified("u1").Rejection())

	err := Rejected(errors.New("bad audience")).Rejection()
	require.ErrorIs(t, err, ErrCredentialRejected)
	require.Contains(t, err.Error(), "bad audience")

	require.ErrorIs(t, Identity{State: StateRejected}.Rejection(), ErrCredentialRejected)
}

func TestRequireSubject(t *testing.T) {
	sub, err := Verified("u1").RequireSubject()
	require.NoError(t, err)
	require.Equal(t, "u1", sub)

	_, err = Anonymous().RequireSubject()
	require.ErrorIs(t, err, ErrNoCredential)

	_, err = Rejected(errors.New("nope")).RequireSubject()
	require.ErrorIs(t, err, ErrCredentialRejected)
}
