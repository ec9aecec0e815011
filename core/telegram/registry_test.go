package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", GroupDescription: "Start in group"})
	reg.RegisterCommand("/link", commands.Command{Handler: noop, Description: "Link", Scope: commands.ScopePrivate})
	reg.RegisterCommand("/mystate", commands.Command{Handler: noop, Description: "State", Scope: commands.ScopeGroup, Aliases: []string{"state"}})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})
	return reg
}

func texts(cmds []tele.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}

func TestListCommandsByScope(t *testing.T) {
	reg := testRegistry()
	assert.Equal(t, []string{"link", "start"}, texts(reg.ListCommands(commands.ScopePrivate)))

	group := reg.ListCommands(commands.ScopeGroup)
	assert.Equal(t, []string{"mystate", "start"}, texts(group))
	assert.Equal(t, "Start in group", group[1].Description)
}

func TestRegisterCommandRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("noslash", commands.Command{Handler: noop, Description: "x"})
	reg.RegisterCommand("/empty", commands.Command{Handler: noop})
	assert.Empty(t, reg.Commands())
}

// No logger.InitLogger in this package: skips and duplicates must still log
// through the package defaults.
func TestRegisterWithoutLoggerSetup(t *testing.T) {
	reg := NewRegistry()
	require.NotPanics(t, func() {
		reg.RegisterCommand("", commands.Command{Handler: noop, Description: "x"})
		reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
		reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Again"})
		_ = reg.RegisterCallback("", noop)
	})
	assert.Len(t, reg.Commands(), 1)
}

func TestLookupCommandAlias(t *testing.T) {
	reg := testRegistry()
	key, _, ok := reg.LookupCommand("/state")
	require.True(t, ok)
	assert.Equal(t, "/mystate", key)
	_, _, ok = reg.LookupCommand("missing")
	assert.False(t, ok)
}

func TestRegisterCallbackDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("download", noop))
	assert.Error(t, reg.RegisterCallback("download", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Equal(t, []string{"download"}, reg.ListCallbacks())
}

type recordingSetter struct {
	scopes []string
}

func (r *recordingSetter) SetCommands(opts ...interface{}) error {
	for _, o := range opts {
		if s, ok := o.(tele.CommandScope); ok {
			r.scopes = append(r.scopes, string(s.Type))
		}
	}
	return nil
}

func TestInitBotCommandsScopes(t *testing.T) {
	reg := testRegistry()
	rec := &recordingSetter{}
	InitBotCommands(rec, reg, false)
	assert.Equal(t, []string{string(tele.CommandScopeAllPrivateChats), string(tele.CommandScopeDefault)}, rec.scopes)

	rec = &recordingSetter{}
	InitBotCommands(rec, reg, true)
	assert.Len(t, rec.scopes, 3)
}
