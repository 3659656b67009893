package permission

import "testing"

func TestRegistryRegisterAndFreeze(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Code: "user_manage"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Definition{Code: "user_manage"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register(Definition{}); err == nil {
		t.Fatal("expected empty code to fail")
	}

	def, ok := r.Lookup("user_manage")
	if !ok || def.Name != "user_manage" {
		t.Fatalf("expected name to default to code, got %+v", def)
	}

	r.Freeze()
	if err := r.Register(Definition{Code: "role_manage"}); err == nil {
		t.Fatal("expected registration after freeze to fail")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 permission, got %d", r.Count())
	}
}

func TestRegistryValidatePolicy(t *testing.T) {
	r := NewRegistry()
	if err := r.Validate(Any("anything")); err != nil {
		t.Fatalf("expected empty registry to accept any policy, got %v", err)
	}

	_ = r.Register(Definition{Code: "a"})
	if err := r.Validate(Any("a")); err != nil {
		t.Fatalf("expected known code to validate, got %v", err)
	}
	if err := r.Validate(All("a", "typo")); err == nil {
		t.Fatal("expected unknown code to fail validation")
	}
}

func TestRoleManager(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Definition{Code: "user_manage"})
	_ = r.Register(Definition{Code: "role_manage"})

	rm := NewRoleManager(r)
	if err := rm.RegisterRole(RoleTemplate{Code: "super_admin", Permissions: []string{"user_manage", "role_manage"}}); err != nil {
		t.Fatalf("register role: %v", err)
	}
	if err := rm.RegisterRole(RoleTemplate{Code: "bad", Permissions: []string{"missing"}}); err == nil {
		t.Fatal("expected unknown permission to fail")
	}
	if err := rm.RegisterRole(RoleTemplate{Code: "super_admin"}); err == nil {
		t.Fatal("expected duplicate role to fail")
	}

	tpl, ok := rm.Role("super_admin")
	if !ok || len(tpl.Permissions) != 2 {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	rm.Freeze()
	if err := rm.RegisterRole(RoleTemplate{Code: "late"}); err == nil {
		t.Fatal("expected registration after freeze to fail")
	}
	if got := rm.Roles(); len(got) != 1 || got[0].Code != "super_admin" {
		t.Fatalf("unexpected roles: %+v", got)
	}
}
