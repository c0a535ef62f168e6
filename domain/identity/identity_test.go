package identity_test

import (
	"reflect"
	"testing"

	"github.com/cloudmeter/cloudmeter/domain/identity"
	"github.com/cloudmeter/cloudmeter/domain/usage"
)

var assignments = []identity.RoleAssignment{
	{ProjectID: "p1", UserID: "alice", Role: "billing"},
	{ProjectID: "p1", UserID: "alice", Role: "member"},
	{ProjectID: "p1", UserID: "bob", Role: "member"},
	{ProjectID: "p2", UserID: "bob", Role: "Billing"},
	{ProjectID: "p2", UserID: "alice", Role: "member"},
	{ProjectID: "p3", UserID: "carol", Role: "admin"},
}

func TestBuildResponsibility(t *testing.T) {
	resp := identity.BuildResponsibility(assignments, "billing")

	tests := []struct {
		userID    string
		projectID string
		want      bool
	}{
		{"alice", "p1", true},
		{"bob", "p1", false},
		{"bob", "p2", true}, // role name matching is case-insensitive
		{"alice", "p2", false},
		{"carol", "p3", false},
		{"nobody", "p1", false},
		{"alice", "missing", false},
	}
	for _, tt := range tests {
		if got := resp.Responsible(tt.userID, tt.projectID); got != tt.want {
			t.Errorf("Responsible(%q, %q) = %v, want %v", tt.userID, tt.projectID, got, tt.want)
		}
	}
}

func TestBillingProjects_Sorted(t *testing.T) {
	more := append([]identity.RoleAssignment{
		{ProjectID: "p9", UserID: "alice", Role: "BILLING"},
		{ProjectID: "p0", UserID: "alice", Role: "billing"},
	}, assignments...)

	resp := identity.BuildResponsibility(more, "billing")
	got := resp.BillingProjects("alice")
	want := []string{"p0", "p1", "p9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BillingProjects(alice) = %v, want %v", got, want)
	}
	if projects := resp.BillingProjects("carol"); len(projects) != 0 {
		t.Errorf("BillingProjects(carol) = %v, want empty", projects)
	}
}

func TestRolesForUser(t *testing.T) {
	dup := append([]identity.RoleAssignment{
		{ProjectID: "p1", UserID: "alice", Role: "MEMBER"},
	}, assignments...)

	got := identity.RolesForUser(dup, "alice")
	want := map[string][]string{
		"p1": {"billing", "member"},
		"p2": {"member"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RolesForUser(alice) = %v, want %v", got, want)
	}

	if roles := identity.RolesForUser(assignments, "nobody"); len(roles) != 0 {
		t.Errorf("RolesForUser(nobody) = %v, want empty", roles)
	}
}

func TestUsedProjects(t *testing.T) {
	used := identity.UsedProjects(assignments, "alice")
	want := map[string]struct{}{"p1": {}, "p2": {}}
	if !reflect.DeepEqual(used, want) {
		t.Errorf("UsedProjects(alice) = %v, want %v", used, want)
	}
}

func TestUsernameMap_Resolve(t *testing.T) {
	names := identity.UsernameMap{"alice": "alice@example.org"}

	if got := names.Resolve("alice"); got != "alice@example.org" {
		t.Errorf("Resolve(alice) = %q", got)
	}
	if got := names.Resolve("f00d"); got != "Unknown User <f00d>" {
		t.Errorf("Resolve(f00d) = %q, want placeholder", got)
	}
}

func TestAttribute(t *testing.T) {
	totals := map[usage.Key]int64{
		{UserID: "alice", ProjectID: "p1"}: 100,
		{UserID: "bob", ProjectID: "p1"}:   200,
		{UserID: "alice", ProjectID: "p2"}: 300,
		{UserID: "bob", ProjectID: "p2"}:   400,
		{UserID: "carol", ProjectID: "p3"}: 500,
	}
	resp := identity.BuildResponsibility(assignments, "billing")

	t.Run("billing holder sees every row in their projects", func(t *testing.T) {
		used := identity.UsedProjects(assignments, "alice")
		got := identity.Attribute(totals, resp, "alice", used)
		want := map[usage.Key]int64{
			{UserID: "alice", ProjectID: "p1"}: 100,
			{UserID: "bob", ProjectID: "p1"}:   200,
			{UserID: "alice", ProjectID: "p2"}: 300,
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Attribute(alice) = %v, want %v", got, want)
		}
	})

	t.Run("ordinary user sees only their own rows", func(t *testing.T) {
		used := identity.UsedProjects(assignments, "bob")
		got := identity.Attribute(totals, resp, "bob", used)
		want := map[usage.Key]int64{
			{UserID: "bob", ProjectID: "p1"}: 200,
			{UserID: "bob", ProjectID: "p2"}: 400,
			{UserID: "alice", ProjectID: "p2"}: 300, // billing role on p2
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Attribute(bob) = %v, want %v", got, want)
		}
	})

	t.Run("stranger sees nothing", func(t *testing.T) {
		got := identity.Attribute(totals, resp, "mallory", nil)
		if len(got) != 0 {
			t.Errorf("Attribute(mallory) = %v, want empty", got)
		}
	})
}
