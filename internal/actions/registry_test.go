package actions

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		domain Domain
		action Action
		params string
		want   string
	}{
		{DomainEssentials, ActionHeal, "Bob", "heal Bob"},
		{DomainEssentials, ActionTP, "Bob Alice", "tp Bob Alice"},
		{DomainEssentials, ActionBan, "Griefer being rude", "ban Griefer being rude"},
		{DomainWorldEdit, ActionCopy, "", "//copy"},
		{DomainWorldEdit, ActionUndo, "ignored", "//undo"},
		{DomainLuckPerms, ActionAddPerm, "Bob essentials.fly", "lp user Bob essentials.fly permission set"},
		{DomainLuckPerms, ActionRemovePerm, "Bob essentials.fly", "lp user Bob essentials.fly permission unset"},
		{DomainLuckPerms, ActionAddGroup, "Bob vip", "lp user Bob vip parent add"},
		{DomainLuckPerms, ActionRemoveGroup, "Bob vip", "lp user Bob vip parent remove"},
	}

	for _, tt := range tests {
		t.Run(string(tt.domain)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Resolve(tt.domain, tt.action, tt.params)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	tests := []struct {
		domain Domain
		action Action
	}{
		{DomainEssentials, "nope"},
		{"nope", ActionHeal},
		{DomainWorldEdit, ActionHeal},
	}

	for _, tt := range tests {
		if _, err := Resolve(tt.domain, tt.action, "Bob"); !errors.Is(err, ErrUnknownAction) {
			t.Errorf("Resolve(%s, %s) err = %v, want ErrUnknownAction", tt.domain, tt.action, err)
		}
	}
}

func TestResolveNamed(t *testing.T) {
	got, err := ResolveNamed(" Essentials ", "HEAL", "Bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "heal Bob" {
		t.Fatalf("ResolveNamed = %q", got)
	}
}

func TestParamsAreNotEscaped(t *testing.T) {
	got, err := Resolve(DomainEssentials, ActionKick, "Bob\nop Mallory")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "kick Bob\nop Mallory" {
		t.Fatalf("params should pass through verbatim, got %q", got)
	}
}

func TestListIsSortedAndComplete(t *testing.T) {
	list := List()
	if len(list) != 18 {
		t.Fatalf("len(List()) = %d, want 18", len(list))
	}
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1].Key, list[i].Key
		if prev.Domain > cur.Domain || (prev.Domain == cur.Domain && prev.Action >= cur.Action) {
			t.Fatalf("List() not sorted at %d: %s then %s", i, prev, cur)
		}
	}

	domains := Domains()
	want := []Domain{DomainEssentials, DomainLuckPerms, DomainWorldEdit}
	if len(domains) != len(want) {
		t.Fatalf("Domains() = %v", domains)
	}
	for i := range want {
		if domains[i] != want[i] {
			t.Fatalf("Domains() = %v, want %v", domains, want)
		}
	}
}
