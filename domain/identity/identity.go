// Package identity resolves which user is financially responsible for
// project usage and maps opaque identifiers to display names.
// All functions are pure - no side effects.
package identity

import (
	"sort"
	"strings"

	"github.com/cloudmeter/cloudmeter/domain/usage"
)

// RoleAssignment is one (project, user, role) grant from the identity snapshot.
type RoleAssignment struct {
	ProjectID string
	UserID    string
	Role      string
}

// Project pairs a project identifier with its display name.
type Project struct {
	ID   string
	Name string
}

// LocalUser pairs a user identifier with its login name.
type LocalUser struct {
	ID   string
	Name string
}

// ResponsibilityMap maps a project identifier to the set of users holding
// the billing role for it. Built once per run; read-only during aggregation.
type ResponsibilityMap map[string]map[string]struct{}

// BuildResponsibility indexes billing-role grants by project. Role name
// comparison is case-insensitive.
func BuildResponsibility(assignments []RoleAssignment, billingRole string) ResponsibilityMap {
	want := strings.ToLower(billingRole)
	m := make(ResponsibilityMap)
	for _, a := range assignments {
		if strings.ToLower(a.Role) != want {
			continue
		}
		users, ok := m[a.ProjectID]
		if !ok {
			users = make(map[string]struct{})
			m[a.ProjectID] = users
		}
		users[a.UserID] = struct{}{}
	}
	return m
}

// Responsible reports whether the user holds the billing role on the project.
func (m ResponsibilityMap) Responsible(userID, projectID string) bool {
	_, ok := m[projectID][userID]
	return ok
}

// BillingProjects returns the sorted projects the user is financially
// responsible for.
func (m ResponsibilityMap) BillingProjects(userID string) []string {
	var projects []string
	for projectID, users := range m {
		if _, ok := users[userID]; ok {
			projects = append(projects, projectID)
		}
	}
	sort.Strings(projects)
	return projects
}

// RolesForUser merges the user's grants into a per-project role set.
// Duplicate (project, role) pairs collapse; role names are lower-cased for
// consistent downstream comparison. Each slice is sorted.
func RolesForUser(assignments []RoleAssignment, userID string) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for _, a := range assignments {
		if a.UserID != userID {
			continue
		}
		roles, ok := seen[a.ProjectID]
		if !ok {
			roles = make(map[string]struct{})
			seen[a.ProjectID] = roles
		}
		roles[strings.ToLower(a.Role)] = struct{}{}
	}

	out := make(map[string][]string, len(seen))
	for projectID, roles := range seen {
		list := make([]string, 0, len(roles))
		for role := range roles {
			list = append(list, role)
		}
		sort.Strings(list)
		out[projectID] = list
	}
	return out
}

// UsedProjects returns the set of projects where the user holds any role,
// i.e. the projects the user can personally create resources in.
func UsedProjects(assignments []RoleAssignment, userID string) map[string]struct{} {
	used := make(map[string]struct{})
	for _, a := range assignments {
		if a.UserID == userID {
			used[a.ProjectID] = struct{}{}
		}
	}
	return used
}

// UsernameMap maps a user identifier to a display name. Populated once per
// run from the identity snapshot; read-only afterwards.
type UsernameMap map[string]string

// Resolve returns the display name for a user identifier. A miss returns a
// deterministic placeholder embedding the raw identifier so that report
// generation is total over every identifier ever seen.
func (m UsernameMap) Resolve(userID string) string {
	if name, ok := m[userID]; ok {
		return name
	}
	return "Unknown User <" + userID + ">"
}

// Attribute filters usage totals down to what the requesting user may see:
// every row in projects they hold the billing role for, plus their own rows
// in projects they have used. Billing-role holders see all usage in their
// projects regardless of the owning user; ordinary users see only usage they
// created themselves.
func Attribute(totals map[usage.Key]int64, resp ResponsibilityMap, requestingUser string, usedProjects map[string]struct{}) map[usage.Key]int64 {
	out := make(map[usage.Key]int64)
	for k, v := range totals {
		if resp.Responsible(requestingUser, k.ProjectID) {
			out[k] = v
			continue
		}
		if _, used := usedProjects[k.ProjectID]; used && k.UserID == requestingUser {
			out[k] = v
		}
	}
	return out
}
