package access

import (
	"sort"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

// Scope is how far a professional's access reaches for one kind and
// operation. Patients and admins are not table-driven: patients are always
// limited to their own profile and admins are always allowed.
type Scope int

const (
	// ScopeNone denies professionals outright.
	ScopeNone Scope = iota
	// ScopeOwnership requires resource.professional_id to equal the
	// professional's own profile id.
	ScopeOwnership
	// ScopeBlanket allows any professional with a resolved profile,
	// regardless of which patient or professional owns the resource.
	ScopeBlanket
)

func (s Scope) String() string {
	switch s {
	case ScopeOwnership:
		return "ownership"
	case ScopeBlanket:
		return "blanket"
	default:
		return "none"
	}
}

// Policy is the per-kind, per-operation professional scope table.
type Policy map[Kind]map[Operation]Scope

// DefaultPolicy is the production table.
//
// Blanket professional access to medical records, vital signs, prescription
// reads, patient profile reads and risk data reproduces the behaviour the
// system has always had. It lets any professional see any patient and should
// be narrowed to a care relationship once one is modelled.
func DefaultPolicy() Policy {
	return Policy{
		KindAppointment: {
			OpRead:  ScopeOwnership,
			OpWrite: ScopeOwnership,
		},
		KindMedicalRecord: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeBlanket,
		},
		KindPrescription: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeOwnership,
		},
		KindVitalSign: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeBlanket,
		},
		KindEmergencyAlert: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeBlanket,
		},
		KindPatientProfile: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeNone,
		},
		KindRiskAssessment: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeBlanket,
		},
		KindRecommendation: {
			OpRead:  ScopeBlanket,
			OpWrite: ScopeBlanket,
		},
	}
}

// Kinds returns the kinds declared in the table in a stable order.
func (p Policy) Kinds() []Kind {
	kinds := make([]Kind, 0, len(p))
	for k := range p {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Scope looks up the professional scope. Undeclared entries are ScopeNone.
func (p Policy) Scope(kind Kind, op Operation) Scope {
	return p[kind][op]
}

// Validate checks that the table covers exactly the known kinds and that
// every kind defines both operations with a known scope. It is run once at
// startup.
func (p Policy) Validate() error {
	if len(p) == 0 {
		return apperr.ConfigInvariant("access policy declares no resource kinds")
	}
	known := make(map[Kind]bool)
	for _, kind := range AllKinds() {
		known[kind] = true
		if _, ok := p[kind]; !ok {
			return apperr.ConfigInvariant("access policy has no entry for %s", kind)
		}
	}
	for _, kind := range p.Kinds() {
		if !known[kind] {
			return apperr.ConfigInvariant("access policy declares unknown kind %q", kind)
		}
	}
	for _, kind := range p.Kinds() {
		ops := p[kind]
		for _, op := range []Operation{OpRead, OpWrite} {
			scope, ok := ops[op]
			if !ok {
				return apperr.ConfigInvariant("access policy for %s has no %s entry", kind, op)
			}
			if scope < ScopeNone || scope > ScopeBlanket {
				return apperr.ConfigInvariant("access policy for %s/%s has unknown scope %d", kind, op, scope)
			}
		}
	}
	return nil
}
