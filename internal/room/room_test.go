package room

import (
	"strconv"
	"sync"
	"testing"
)

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry()

	id := reg.Create()
	if len(id) != 6 {
		t.Errorf("Expected 6-digit room id, got %q", id)
	}
	if _, err := strconv.Atoi(id); err != nil {
		t.Errorf("Room id should be numeric, got %q", id)
	}

	r, ok := reg.Get(id)
	if !ok {
		t.Fatal("Created room should be registered")
	}
	if r.Content() != "" {
		t.Error("New room should have empty content")
	}
	if r.OwnerID() != "" {
		t.Error("New room should have no owner")
	}
	if r.UserCount() != 0 {
		t.Error("New room should have no participants")
	}
}

func TestRegistryCreateUnique(t *testing.T) {
	reg := NewRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := reg.Create()
		if seen[id] {
			t.Fatalf("Duplicate room id %q", id)
		}
		seen[id] = true
	}
	if reg.Count() != 200 {
		t.Errorf("Expected 200 rooms, got %d", reg.Count())
	}
}

func TestRegistryGetAbsent(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("000000"); ok {
		t.Error("Unregistered room id should not resolve")
	}
}

func TestOwnerClaim(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Get(reg.Create())

	role := r.Join("conn-1", RoleOwner, "alice", "#111")
	if role != RoleOwner {
		t.Errorf("First owner join should get owner, got %s", role)
	}
	if r.OwnerID() != "conn-1" {
		t.Errorf("Owner id should be conn-1, got %q", r.OwnerID())
	}

	// Second claim on an owned room is demoted.
	role = r.Join("conn-2", RoleOwner, "bob", "#222")
	if role != RoleEditor {
		t.Errorf("Second owner claim should demote to editor, got %s", role)
	}
	if r.OwnerID() != "conn-1" {
		t.Error("Owner id must not be reassigned at join time")
	}

	// The owner re-joining keeps the owner role.
	role = r.Join("conn-1", RoleOwner, "alice2", "#111")
	if role != RoleOwner {
		t.Errorf("Owner re-join should keep owner, got %s", role)
	}
}

func TestOwnerNotReassignedAfterLeave(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Get(reg.Create())

	r.Join("conn-1", RoleOwner, "alice", "#111")
	r.Leave("conn-1")

	if r.OwnerID() != "conn-1" {
		t.Error("Owner id persists after the owner leaves")
	}
	role := r.Join("conn-2", RoleOwner, "bob", "#222")
	if role != RoleEditor {
		t.Errorf("Owner slot is not re-claimable, got %s", role)
	}
}

func TestRejoinUpdatesIdentity(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Get(reg.Create())

	r.Join("conn-1", RoleEditor, "alice", "#111")
	r.Join("conn-1", RoleEditor, "alicia", "#333")

	if r.UserCount() != 1 {
		t.Fatalf("Re-join should not add a second record, got %d", r.UserCount())
	}
	p, _ := r.Participant("conn-1")
	if p.Username != "alicia" || p.Color != "#333" {
		t.Errorf("Re-join should overwrite identity fields, got %+v", p)
	}
}

func TestSetRole(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Get(reg.Create())

	r.Join("conn-1", RoleViewer, "alice", "#111")

	if !r.SetRole("conn-1", RoleEditor) {
		t.Fatal("SetRole on a member should succeed")
	}
	p, _ := r.Participant("conn-1")
	if p.Role != RoleEditor {
		t.Errorf("Expected editor, got %s", p.Role)
	}

	if r.SetRole("ghost", RoleEditor) {
		t.Error("SetRole on a non-member should fail")
	}
}

func TestHydrateOnlyOnce(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Get(reg.Create())

	if !r.Hydrate("from storage") {
		t.Fatal("First hydrate should apply")
	}
	if r.Hydrate("stale load") {
		t.Error("Second hydrate should be a no-op")
	}
	if r.Content() != "from storage" {
		t.Errorf("Content = %q, want %q", r.Content(), "from storage")
	}
}

func TestHydrateDoesNotClobberEdits(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Get(reg.Create())

	// An edit lands while the storage load is still in flight.
	r.SetContent("edited")

	if r.Hydrate("stale load") {
		t.Error("Hydrate must not apply after an edit")
	}
	if r.Content() != "edited" {
		t.Errorf("Content = %q, want %q", r.Content(), "edited")
	}
}

func TestRemoveConnectionSweep(t *testing.T) {
	reg := NewRegistry()
	id1, id2 := reg.Create(), reg.Create()
	r1, _ := reg.Get(id1)
	r2, _ := reg.Get(id2)

	r1.Join("conn-1", RoleEditor, "alice", "#111")
	r2.Join("conn-1", RoleViewer, "alice", "#111")
	r2.Join("conn-2", RoleOwner, "bob", "#222")

	affected := reg.RemoveConnection("conn-1")
	if len(affected) != 2 {
		t.Fatalf("Expected 2 affected rooms, got %d", len(affected))
	}
	if r1.UserCount() != 0 || r2.UserCount() != 1 {
		t.Error("Sweep should remove the connection from every room")
	}

	if affected := reg.RemoveConnection("ghost"); len(affected) != 0 {
		t.Errorf("Unknown connection should affect no rooms, got %d", len(affected))
	}
}

func TestRoleChecks(t *testing.T) {
	if !RoleOwner.CanEdit() || !RoleEditor.CanEdit() {
		t.Error("Owner and editor can edit")
	}
	if RoleViewer.CanEdit() {
		t.Error("Viewer cannot edit")
	}
	if !RoleOwner.CanManage() {
		t.Error("Owner can manage")
	}
	if RoleEditor.CanManage() || RoleViewer.CanManage() {
		t.Error("Only owner can manage")
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"owner", "editor", "viewer"} {
		if _, ok := ParseRole(s); !ok {
			t.Errorf("ParseRole(%q) should succeed", s)
		}
	}
	for _, s := range []string{"", "admin", "Owner", "root"} {
		if _, ok := ParseRole(s); ok {
			t.Errorf("ParseRole(%q) should fail", s)
		}
	}
}

func TestRegistryConcurrentCreate(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Create()
		}()
	}
	wg.Wait()

	if reg.Count() != 50 {
		t.Errorf("Expected 50 rooms, got %d", reg.Count())
	}
}
