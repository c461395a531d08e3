// Package policy holds the single role/ownership check consulted by every repair service.
package policy

import (
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Name string
	Role entity.Role
}

// Action is an operation subject to authorization.
type Action string

const (
	ActionViewJob           Action = "job.view"
	ActionCreateJob         Action = "job.create"
	ActionUpdateJob         Action = "job.update"
	ActionUpdateJobIntake   Action = "job.update_intake" // customer-facing fields only
	ActionChangeStatus      Action = "job.change_status"
	ActionAssignTechnician  Action = "job.assign"
	ActionAddRepairRecord   Action = "job.add_record"
	ActionAddPart           Action = "job.add_part"
	ActionManageCustomers   Action = "customer.manage"
	ActionManageCatalog     Action = "catalog.manage"
	ActionManageUsers       Action = "user.manage"
	ActionViewDashboard     Action = "dashboard.view"
	ActionViewNotifications Action = "notification.view"
)

// technicianJobActions require the job to be assigned to the technician.
var technicianJobActions = map[Action]bool{
	ActionChangeStatus:    true,
	ActionAddRepairRecord: true,
	ActionAddPart:         true,
}

var receptionistActions = map[Action]bool{
	ActionViewJob:           true,
	ActionCreateJob:         true,
	ActionUpdateJobIntake:   true,
	ActionManageCustomers:   true,
	ActionViewDashboard:     true,
	ActionViewNotifications: true,
}

// Authorize decides whether actor may perform action; job is nil for actions not bound to a job.
func Authorize(actor Actor, action Action, job *entity.Job) error {
	if actor.ID == "" {
		return apperr.Forbidden("authentication required")
	}
	switch actor.Role {
	case entity.RoleAdmin:
		return nil
	case entity.RoleManager:
		if action == ActionManageUsers {
			return apperr.Forbidden("role %s may not manage users", actor.Role)
		}
		return nil
	case entity.RoleTechnician:
		switch {
		case action == ActionViewJob, action == ActionViewDashboard, action == ActionViewNotifications:
			return nil
		case technicianJobActions[action]:
			if job == nil || !job.IsAssignedTo(actor.ID) {
				return apperr.Forbidden("job is not assigned to technician %s", actor.ID)
			}
			return nil
		}
	case entity.RoleReceptionist:
		if receptionistActions[action] {
			return nil
		}
	}
	return apperr.Forbidden("role %q may not perform %s", actor.Role, action)
}
