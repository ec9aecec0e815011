// Package commands describes bot commands for the registry and the menu.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Scope selects which command menus list a command.
type Scope uint8

const (
	// ScopePrivate lists the command in private chats.
	ScopePrivate Scope = 1 << iota
	// ScopeGroup lists the command in group chats.
	ScopeGroup

	ScopeAll = ScopePrivate | ScopeGroup
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// GroupDescription overrides Description in group menus.
	GroupDescription string
	Scope            Scope
	AdminOnly        bool
	Hidden           bool
	Aliases          []string
}

// In reports whether the command belongs to scope. A zero Scope means all.
func (c Command) In(scope Scope) bool {
	return c.Scope == 0 || c.Scope&scope != 0
}

// DescriptionFor returns the menu text for scope.
func (c Command) DescriptionFor(scope Scope) string {
	if scope == ScopeGroup && c.GroupDescription != "" {
		return c.GroupDescription
	}
	return c.Description
}
