package segment

import (
	"fmt"

	"github.com/catdesk/backend/internal/caterr"
)

// Status is the review state of a segment.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusTranslated   Status = "translated"
	StatusApprovedByP1 Status = "approved_by_p1"
	StatusApprovedByP2 Status = "approved_by_p2"
	StatusRejected     Status = "rejected"
	StatusFinalized    Status = "finalized"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusDraft, StatusTranslated, StatusApprovedByP1,
	StatusApprovedByP2, StatusRejected, StatusFinalized,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Role is a project role held by a user.
type Role string

const (
	RoleOwner         Role = "owner"
	RoleProjectLeader Role = "project_leader"
	RoleTranslator    Role = "translator"
	RoleProofreader1  Role = "proofreader_1"
	RoleProofreader2  Role = "proofreader_2"
)

// Roles lists every project role.
var Roles = []Role{RoleOwner, RoleProjectLeader, RoleTranslator, RoleProofreader1, RoleProofreader2}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// editable is the role×status permission matrix.
var editable = map[Role]map[Status]bool{
	RoleOwner: {
		StatusDraft: true, StatusTranslated: true, StatusApprovedByP1: true,
		StatusApprovedByP2: true, StatusRejected: true,
	},
	RoleProjectLeader: {
		StatusDraft: true, StatusTranslated: true, StatusApprovedByP1: true,
		StatusApprovedByP2: true, StatusRejected: true,
	},
	RoleTranslator:   {StatusDraft: true, StatusRejected: true},
	RoleProofreader1: {StatusTranslated: true, StatusRejected: true},
	RoleProofreader2: {StatusApprovedByP1: true},
}

// CanEdit reports whether any of roles may edit a segment in status.
func CanEdit(roles []Role, status Status) bool {
	for _, r := range roles {
		if editable[r][status] {
			return true
		}
	}
	return false
}

// Action is an explicit reviewer workflow step. Leaving draft has no action:
// it happens only when an evaluation is recorded (EvaluationPatch).
type Action string

const (
	ActionReject    Action = "reject"
	ActionApproveP1 Action = "approve_p1"
	ActionApproveP2 Action = "approve_p2"
	ActionFinalize  Action = "finalize"
)

var transitions = map[Action]map[Status]Status{
	ActionReject: {
		StatusTranslated:   StatusRejected,
		StatusApprovedByP1: StatusRejected,
	},
	ActionApproveP1: {
		StatusTranslated: StatusApprovedByP1,
		StatusRejected:   StatusApprovedByP1,
	},
	ActionApproveP2: {StatusApprovedByP1: StatusApprovedByP2},
	ActionFinalize: {
		StatusTranslated:   StatusFinalized,
		StatusApprovedByP1: StatusFinalized,
		StatusApprovedByP2: StatusFinalized,
	},
}

// Next returns the status reached by applying a from status.
func Next(from Status, a Action) (Status, error) {
	to, ok := transitions[a][from]
	if !ok {
		return from, caterr.Field(caterr.ErrInvalidTransition, "segment.Next", string(a), string(from))
	}
	return to, nil
}

// actors lists, per action, which roles may perform it and from which states.
// A nil status set means every state the transition table allows.
var actors = map[Action]map[Role]map[Status]bool{
	ActionReject: {
		RoleOwner: nil, RoleProjectLeader: nil,
		RoleProofreader1: {StatusTranslated: true},
		RoleProofreader2: {StatusApprovedByP1: true},
	},
	ActionApproveP1: {
		RoleOwner: nil, RoleProjectLeader: nil, RoleProofreader1: nil,
	},
	ActionApproveP2: {
		RoleOwner: nil, RoleProjectLeader: nil, RoleProofreader2: nil,
	},
	ActionFinalize: {
		RoleOwner: nil, RoleProjectLeader: nil,
	},
}

// Authorized reports whether roles permit action a on a segment in status from.
func Authorized(roles []Role, a Action, from Status) bool {
	byRole, ok := actors[a]
	if !ok {
		return false
	}
	for _, r := range roles {
		states, ok := byRole[r]
		if !ok {
			continue
		}
		if states == nil || states[from] {
			return true
		}
	}
	return false
}

// ParseAction validates a wire action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("unknown action %q: %w", s, caterr.ErrInvalidInput)
	}
	return a, nil
}
