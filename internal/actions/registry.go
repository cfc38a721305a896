// Package actions maps named plugin actions to console command text.
package actions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownAction is returned when a domain/action pair has no template.
var ErrUnknownAction = errors.New("unknown action")

// Domain identifies the server plugin an action belongs to.
type Domain string

const (
	DomainEssentials Domain = "essentials"
	DomainWorldEdit  Domain = "worldedit"
	DomainLuckPerms  Domain = "luckperms"
)

// Action names one operation inside a Domain.
type Action string

const (
	// Essentials
	ActionFly  Action = "fly"
	ActionGod  Action = "god"
	ActionHeal Action = "heal"
	ActionFeed Action = "feed"
	ActionTP   Action = "tp"
	ActionBan  Action = "ban"
	ActionKick Action = "kick"
	ActionMute Action = "mute"

	// WorldEdit
	ActionPos1  Action = "pos1"
	ActionPos2  Action = "pos2"
	ActionCopy  Action = "copy"
	ActionPaste Action = "paste"
	ActionUndo  Action = "undo"
	ActionRedo  Action = "redo"

	// LuckPerms
	ActionAddPerm     Action = "addperm"
	ActionRemovePerm  Action = "removeperm"
	ActionAddGroup    Action = "addgroup"
	ActionRemoveGroup Action = "removegroup"
)

// paramsMarker is the single substitution point in a template.
const paramsMarker = "{params}"

// Key identifies a table entry.
type Key struct {
	Domain Domain
	Action Action
}

func (k Key) String() string {
	return string(k.Domain) + "." + string(k.Action)
}

// Template is the command text for one action. Fixed templates contain no
// substitution point and ignore params.
type Template struct {
	Key
	Format      string
	Description string
}

// Fixed reports whether the template ignores params.
func (t Template) Fixed() bool {
	return !strings.Contains(t.Format, paramsMarker)
}

// Render substitutes params verbatim. No escaping is performed: callers
// must not pass untrusted input.
func (t Template) Render(params string) string {
	if t.Fixed() {
		return t.Format
	}
	return strings.TrimSpace(strings.Replace(t.Format, paramsMarker, params, 1))
}

var table = map[Key]Template{}

func register(domain Domain, action Action, format, desc string) {
	k := Key{Domain: domain, Action: action}
	table[k] = Template{Key: k, Format: format, Description: desc}
}

func init() {
	register(DomainEssentials, ActionFly, "fly {params}", "Toggle flight for a player")
	register(DomainEssentials, ActionGod, "god {params}", "Toggle god mode for a player")
	register(DomainEssentials, ActionHeal, "heal {params}", "Restore a player's health")
	register(DomainEssentials, ActionFeed, "feed {params}", "Restore a player's hunger")
	register(DomainEssentials, ActionTP, "tp {params}", "Teleport a player")
	register(DomainEssentials, ActionBan, "ban {params}", "Ban a player")
	register(DomainEssentials, ActionKick, "kick {params}", "Kick a player")
	register(DomainEssentials, ActionMute, "mute {params}", "Mute a player")

	register(DomainWorldEdit, ActionPos1, "//pos1", "Set the first selection corner")
	register(DomainWorldEdit, ActionPos2, "//pos2", "Set the second selection corner")
	register(DomainWorldEdit, ActionCopy, "//copy", "Copy the selection")
	register(DomainWorldEdit, ActionPaste, "//paste", "Paste the clipboard")
	register(DomainWorldEdit, ActionUndo, "//undo", "Undo the last edit")
	register(DomainWorldEdit, ActionRedo, "//redo", "Redo the last undone edit")

	register(DomainLuckPerms, ActionAddPerm, "lp user {params} permission set", "Grant a permission: <user> <node>")
	register(DomainLuckPerms, ActionRemovePerm, "lp user {params} permission unset", "Revoke a permission: <user> <node>")
	register(DomainLuckPerms, ActionAddGroup, "lp user {params} parent add", "Add a user to a group: <user> <group>")
	register(DomainLuckPerms, ActionRemoveGroup, "lp user {params} parent remove", "Remove a user from a group: <user> <group>")
}

// Lookup returns the template for a domain/action pair.
func Lookup(domain Domain, action Action) (Template, error) {
	t, ok := table[Key{Domain: domain, Action: action}]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s.%s", ErrUnknownAction, domain, action)
	}
	return t, nil
}

// Resolve returns the command text for an action.
func Resolve(domain Domain, action Action, params string) (string, error) {
	t, err := Lookup(domain, action)
	if err != nil {
		return "", err
	}
	return t.Render(params), nil
}

// ResolveNamed is Resolve for untyped input such as request bodies.
// Names are matched case-insensitively.
func ResolveNamed(domain, action, params string) (string, error) {
	return Resolve(
		Domain(strings.ToLower(strings.TrimSpace(domain))),
		Action(strings.ToLower(strings.TrimSpace(action))),
		params,
	)
}

// List returns every template ordered by domain then action.
func List() []Template {
	out := make([]Template, 0, len(table))
	for _, t := range table {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Domains returns the known domains in sorted order.
func Domains() []Domain {
	seen := make(map[Domain]bool)
	var out []Domain
	for k := range table {
		if !seen[k.Domain] {
			seen[k.Domain] = true
			out = append(out, k.Domain)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
