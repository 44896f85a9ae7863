// Package workflow applies status transitions to content and records their
// review effects.
package workflow

import (
	"time"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
)

// Effect classifies which review axis a transition touched.
type Effect string

const (
	EffectStatusOnly Effect = "status"
	EffectChecked    Effect = "checked"
	EffectApproved   Effect = "approved"
	EffectRejected   Effect = "rejected"
)

// Transition is the outcome of Apply. After holds the fields to persist.
type Transition struct {
	Before content.Entity
	After  content.Entity
	Effect Effect
	// At is the single timestamp stamped into After and reused by the
	// approval row and the status event.
	At time.Time
}

// Machine stamps review fields. It performs no authorization and accepts any
// requested code; codes without review semantics only move the status.
type Machine struct {
	now func() time.Time
}

// NewMachine constructs a Machine. A nil clock defaults to time.Now in UTC.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Machine{now: now}
}

// Apply computes the fields a status request mutates on ent.
func (m *Machine) Apply(actor identity.Actor, ent content.Entity, requested content.Status) Transition {
	now := m.now()
	after := ent.Clone()
	after.StatusID = requested
	effect := EffectStatusOnly

	switch requested {
	case content.StatusChecking, content.StatusChecked:
		after.Checked = content.Positive
		after.CheckedBy = actor.ID()
		after.CheckedAt = now
		effect = EffectChecked
	case content.StatusPublished:
		after.Approved = content.Positive
		after.ApprovedBy = actor.ID()
		after.ApprovedAt = now
		effect = EffectApproved
	case content.StatusRejected:
		after.Approved = content.Negative
		after.ApprovedBy = actor.ID()
		after.ApprovedAt = now
		effect = EffectRejected
	}

	return Transition{Before: ent.Clone(), After: after, Effect: effect, At: now}
}
