package auth

// CanRead reports whether the identity may read a resource. Public
// resources are readable by anyone; private ones only by their owner.
func CanRead(ownerID string, public bool, id Identity) bool {
	if public {
		return true
	}
	return CanWrite(ownerID, id)
}

// CanWrite reports whether the identity may mutate a resource. Public
// visibility never grants write access.
func CanWrite(ownerID string, id Identity) bool {
	return id.State == StateVerified && id.Subject == ownerID
}

// DenyRead classifies a failed read check into the matching error: missing
// credential, rejected credential, or plain ownership denial.
func DenyRead(id Identity) error {
	if err := id.Rejection(); err != nil {
		return err
	}
	if id.State == StateAnonymous {
		return ErrNoCredential
	}
	return ErrForbidden
}
