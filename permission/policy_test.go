package permission

import (
	"reflect"
	"testing"
	"time"
)

func TestPolicyMatchAny(t *testing.T) {
	granted := NewSet("a", "b")

	if !Any("b", "c").Allows(granted, nil) {
		t.Fatal("expected {b,c} to be allowed under match-any")
	}
	if Any("c", "d").Allows(granted, nil) {
		t.Fatal("expected {c,d} to be denied under match-any")
	}
}

func TestPolicyMatchAll(t *testing.T) {
	granted := NewSet("a", "b")

	if !All("a", "b").Allows(granted, nil) {
		t.Fatal("expected {a,b} to be allowed under match-all")
	}
	if All("b", "c").Allows(granted, nil) {
		t.Fatal("expected {b,c} to be denied under match-all")
	}
}

func TestPolicyEmptyRequirementAllows(t *testing.T) {
	if !Authenticated().Allows(NewSet(), nil) {
		t.Fatal("expected empty policy to allow any authenticated user")
	}
	if !Any().Allows(nil, nil) {
		t.Fatal("expected empty match-any policy to allow")
	}
}

func TestPolicyWithRoles(t *testing.T) {
	p := Authenticated().WithRoles("admin")

	if p.Allows(NewSet("a"), NewSet("editor")) {
		t.Fatal("expected non-admin to be denied")
	}
	if !p.Allows(NewSet(), NewSet("admin")) {
		t.Fatal("expected admin to be allowed")
	}

	combined := Any("user_manage").WithRoles("admin")
	if combined.Allows(NewSet(), NewSet("admin")) {
		t.Fatal("expected admin without permission to be denied by combined policy")
	}
	if !combined.Allows(NewSet("user_manage"), NewSet("admin")) {
		t.Fatal("expected admin with permission to be allowed")
	}
}

func TestPolicyConstructorsCopyInput(t *testing.T) {
	perms := []string{"a", "b"}
	p := Any(perms...)
	perms[0] = "z"
	if p.Permissions[0] != "a" {
		t.Fatalf("expected policy to own its slice, got %v", p.Permissions)
	}
}

func TestSetSorted(t *testing.T) {
	got := NewSet("c", "a", "", "b", "a").Sorted()
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCacheExpiresAndInvalidates(t *testing.T) {
	c := NewCache(10, 50*time.Millisecond)

	c.Add("u1", []string{"a"})
	got, ok := c.Get("u1")
	if !ok || !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected cached codes, got %v %v", got, ok)
	}

	got[0] = "mutated"
	again, _ := c.Get("u1")
	if again[0] != "a" {
		t.Fatal("expected cache to return copies")
	}

	c.Invalidate("u1")
	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected invalidated entry to be gone")
	}

	c.Add("u2", []string{"b"})
	time.Sleep(120 * time.Millisecond)
	if _, ok := c.Get("u2"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	c.Add("u", []string{"a"})
	if _, ok := c.Get("u"); ok {
		t.Fatal("expected nil cache miss")
	}
	if c.Len() != 0 {
		t.Fatal("expected nil cache to be empty")
	}
}
