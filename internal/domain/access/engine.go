package access

import (
	"fmt"

	"github.com/google/uuid"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Engine evaluates a Policy. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy and returns an engine for it.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy}, nil
}

var defaultEngine = &Engine{policy: DefaultPolicy()}

// Default returns the engine for DefaultPolicy.
func Default() *Engine { return defaultEngine }

// Authorize evaluates the default policy.
func Authorize(actor *Actor, kind Kind, op Operation, res Resource) bool {
	return defaultEngine.Authorize(actor, kind, op, res)
}

func (e *Engine) Authorize(actor *Actor, kind Kind, op Operation, res Resource) bool {
	return e.Decide(actor, kind, op, res).Allowed
}

// Decide evaluates the policy and explains the result. Every path that is
// not an explicit grant is a denial.
func (e *Engine) Decide(actor *Actor, kind Kind, op Operation, res Resource) Decision {
	if actor == nil {
		return deny("no actor")
	}
	if actor.Role == RoleAdmin {
		return allow("admin role")
	}
	if res == nil {
		return deny("no resource")
	}

	switch actor.Role {
	case RolePatient:
		return decidePatient(actor, res)
	case RoleProfessional:
		return e.decideProfessional(actor, kind, op, res)
	default:
		return deny(fmt.Sprintf("unknown role %q", actor.Role))
	}
}

func decidePatient(actor *Actor, res Resource) Decision {
	if actor.PatientProfileID == nil || *actor.PatientProfileID == uuid.Nil {
		return deny("patient profile not resolved")
	}
	owner := res.OwnerPatientID()
	if owner == uuid.Nil || owner != *actor.PatientProfileID {
		return deny("resource belongs to another patient")
	}
	return allow("own record")
}

func (e *Engine) decideProfessional(actor *Actor, kind Kind, op Operation, res Resource) Decision {
	if actor.ProfessionalProfileID == nil || *actor.ProfessionalProfileID == uuid.Nil {
		return deny("professional profile not resolved")
	}

	switch scope := e.policy.Scope(kind, op); scope {
	case ScopeBlanket:
		return allow(fmt.Sprintf("professional %s access to %s", op, kind))
	case ScopeOwnership:
		owner := res.OwnerProfessionalID()
		if owner == nil || *owner != *actor.ProfessionalProfileID {
			return deny(fmt.Sprintf("%s is assigned to another professional", kind))
		}
		return allow("assigned professional")
	default:
		return deny(fmt.Sprintf("professionals may not %s %s", op, kind))
	}
}
