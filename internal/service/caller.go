package service

import (
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

// Caller is the request-scoped identity every service method receives.
type Caller struct {
	domain.Principal
	IP        string
	RequestID string
}

func (c Caller) requireLogin() error {
	if c.IsAnonymous() {
		return ErrUnauthenticated
	}
	return nil
}

func (c Caller) requireRole(role domain.Role) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	if c.Role != role {
		return ErrForbidden
	}
	return nil
}

// canAccess: doctors see every record, patients only their own.
func (c Caller) canAccess(rec *record.Record) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	switch {
	case c.IsDoctor():
		return nil
	case c.IsPatient() && rec.IsOwnedBy(c.Username):
		return nil
	default:
		return ErrForbidden
	}
}
