package lifecycle

import "civicwatch-be/models"

// managerStatuses are the statuses a manager may move their own issues to.
var managerStatuses = map[models.IssueStatus]bool{
	models.StatusManagerAcknowledged:  true,
	models.StatusManagerInvestigating: true,
	models.StatusWorkInProgress:       true,
	models.StatusAwaitingResources:    true,
	models.StatusRequiresAssistance:   true,
	models.StatusActionTaken:          true,
	models.StatusResolved:             true,
}

// preAssignmentStatuses move to Assigned when a manager is attached without an explicit target.
var preAssignmentStatuses = map[models.IssueStatus]bool{
	models.StatusReported:    true,
	models.StatusUnderReview: true,
	models.StatusVerified:    true,
}

// ManagerStatuses returns the manager-facing statuses in progression order.
func ManagerStatuses() []models.IssueStatus {
	out := make([]models.IssueStatus, 0, len(managerStatuses))
	for _, s := range models.AllStatuses {
		if managerStatuses[s] {
			out = append(out, s)
		}
	}
	return out
}

// CanSetStatus reports whether role may move an issue to status.
func CanSetStatus(role models.Role, status models.IssueStatus) bool {
	if !status.Valid() {
		return false
	}
	switch role {
	case models.RoleModerator:
		return true
	case models.RoleManager:
		return managerStatuses[status]
	default:
		return false
	}
}

func CanAssignManager(role models.Role) bool {
	return role == models.RoleModerator
}

func CanTriage(role models.Role) bool {
	return role == models.RoleModerator
}

// CanTransition allows moderators on any issue and managers on their own.
func CanTransition(actor models.User, issue models.Issue) bool {
	return actor.IsModerator() || (actor.IsManager() && issue.AssignedTo(actor.ID))
}

// CanRecordResolution allows only the manager the issue is assigned to.
func CanRecordResolution(actor models.User, issue models.Issue) bool {
	return actor.IsManager() && issue.AssignedTo(actor.ID)
}

func CanBulkTransition(role models.Role) bool {
	return role == models.RoleModerator
}

func CanManageCategories(role models.Role) bool {
	return role == models.RoleModerator
}

func CanRetriggerGeocode(role models.Role) bool {
	return role == models.RoleModerator
}

func CanViewDashboard(role models.Role) bool {
	return role == models.RoleModerator || role == models.RoleManager
}

// CanDeleteIssue allows the reporter or a moderator.
func CanDeleteIssue(actor models.User, issue models.Issue) bool {
	return actor.IsModerator() || issue.Reporter == actor.ID
}

// CanReadInternalNotes hides moderator notes from citizens.
func CanReadInternalNotes(role models.Role) bool {
	return role == models.RoleModerator || role == models.RoleManager
}

// CanAttachImage allows the reporter, a moderator or the assigned manager.
func CanAttachImage(actor models.User, issue models.Issue) bool {
	return actor.IsModerator() || issue.Reporter == actor.ID ||
		(actor.IsManager() && issue.AssignedTo(actor.ID))
}

// CanReconcileUpvotes limits counter repair to moderators.
func CanReconcileUpvotes(role models.Role) bool {
	return role == models.RoleModerator
}
