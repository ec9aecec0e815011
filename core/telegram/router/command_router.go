package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	tg "github.com/m3rciful/tunebot/core/telegram"
	"github.com/m3rciful/tunebot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares one route per command and alias.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := "command." + normalizeHandlerName(cmd)
		inner := middleware.WithAdminCheck(adminOpts, def.AdminOnly, def.Handler)
		h := func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), func() error { return inner(c) })
		}
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			if alias == "" {
				continue
			}
			if alias[0] != '/' {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

// EventRoute wraps h for a non-command endpoint such as tele.OnMyChatMember.
func EventRoute(endpoint any, name string, h tele.HandlerFunc) tg.Route {
	name = normalizeHandlerName(name)
	return tg.Route{
		Endpoint: endpoint,
		Handler: func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), func() error { return h(c) })
		},
	}
}
