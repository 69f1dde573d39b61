package caddy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/openrport/devhost/share/logger"
	"github.com/openrport/devhost/share/ports"
)

type Action string

const (
	ActionCreated   Action = "created"
	ActionReplaced  Action = "replaced"
	ActionUnchanged Action = "unchanged"
	ActionConflict  Action = "conflict"
)

// Result describes what a reconciliation did to the domain's route.
type Result struct {
	Action Action
	Domain string
	// Position is the index of the managed route in the server's route list.
	Position int
	// ActivePort is the live port the domain stays bound to on conflict.
	ActivePort int
}

// ConflictError means the domain is routed to another port that is still
// serving. The route was left untouched.
type ConflictError struct {
	Domain     string
	ActivePort int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("domain %s is already served by an active process on port %d", e.Domain, e.ActivePort)
}

type probeFunc func(ctx context.Context, host string, port int, timeout time.Duration) bool

// Engine reconciles caddy's live config with a local development server.
type Engine struct {
	client   *Client
	cfg      *Config
	logger   *logger.Logger
	isActive probeFunc
}

func NewEngine(client *Client, cfg *Config, l *logger.Logger) *Engine {
	if l == nil {
		l = logger.Discard()
	}
	return &Engine{
		client:   client,
		cfg:      cfg,
		logger:   l,
		isActive: ports.IsActive,
	}
}

// Reconcile points domain at the local port, bootstrapping the server and
// TLS policy first. A *ConflictError is returned only when
// FailOnActiveDomain is set; otherwise a conflict yields ActionConflict.
func (e *Engine) Reconcile(ctx context.Context, domain string, port int) (*Result, error) {
	if port <= 0 {
		return nil, ErrLocalPortUnknown
	}
	if port > ports.MaxPort {
		return nil, ErrPortOutOfRange
	}
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}

	if err := e.Bootstrap(ctx, domain); err != nil {
		return nil, err
	}

	routes, hasRoutes, err := e.routes(ctx)
	if err != nil {
		return nil, err
	}

	route, idx := FindRouteByHost(routes, domain)
	if route == nil {
		return e.create(ctx, domain, port, len(routes), hasRoutes)
	}

	existing, ok := ExtractUpstreamPort(*route)
	if !ok {
		e.logger.Infof("route for %s has no usable upstream, replacing it", domain)
		return e.replace(ctx, domain, port, idx, route.ID)
	}

	if !e.isActive(ctx, e.cfg.UpstreamHost, existing, e.cfg.ProbeTimeout) {
		if existing != port {
			e.logger.Infof("route for %s points at inactive port %d, replacing it", domain, existing)
		}
		return e.replace(ctx, domain, port, idx, route.ID)
	}

	if existing == port {
		e.logger.Debugf("route for %s already points at port %d", domain, port)
		return &Result{Action: ActionUnchanged, Domain: domain, Position: idx}, nil
	}

	res := &Result{Action: ActionConflict, Domain: domain, Position: idx, ActivePort: existing}
	if e.cfg.FailOnActiveDomain {
		return res, &ConflictError{Domain: domain, ActivePort: existing}
	}
	e.logger.Warnf("%s is already served on active port %d, leaving the route as is", domain, existing)
	return res, nil
}

// Remove deletes the route for domain when it proxies to port. A zero port
// removes the route whatever its upstream.
func (e *Engine) Remove(ctx context.Context, domain string, port int) (bool, error) {
	routes, _, err := e.routes(ctx)
	if err != nil {
		return false, err
	}

	route, idx := FindRouteByHost(routes, domain)
	if route == nil {
		e.logger.Debugf("no route for %s", domain)
		return false, nil
	}

	if port > 0 {
		existing, ok := ExtractUpstreamPort(*route)
		if !ok {
			e.logger.Infof("route for %s has no upstream port, keeping it", domain)
			return false, nil
		}
		if existing != port {
			e.logger.Infof("route for %s points at port %d, not %d, keeping it", domain, existing, port)
			return false, nil
		}
	}

	if err := e.client.Delete(ctx, e.routePath(idx)); err != nil {
		return false, err
	}
	e.logger.Infof("removed route for %s", domain)
	return true, nil
}

// URL is the address the domain is reachable at through the managed server.
func (e *Engine) URL(domain string) string {
	return HTTPSURL(domain, e.cfg.Listen)
}

func HTTPSURL(domain string, listen []string) string {
	port, ok := ports.PickHTTPSPort(listen)
	if !ok || port == 443 {
		return "https://" + domain
	}
	return "https://" + domain + ":" + strconv.Itoa(port)
}

func (e *Engine) routes(ctx context.Context) (routes []Route, found bool, err error) {
	found, err = e.client.Get(ctx, e.serverPath("routes"), &routes)
	if err != nil {
		return nil, false, err
	}
	return routes, found, nil
}

func (e *Engine) create(ctx context.Context, domain string, port int, count int, hasRoutes bool) (*Result, error) {
	route := NewRoute(domain, e.cfg.UpstreamHost, port)

	var err error
	position := 0
	switch {
	case !hasRoutes:
		// no routes array yet, set it
		err = e.client.Post(ctx, e.serverPath("routes"), []Route{route})
	case e.cfg.AppendRoute || count == 0:
		position = count
		err = e.client.Post(ctx, e.serverPath("routes"), route)
	default:
		err = e.client.Put(ctx, e.routePath(0), route)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Infof("created route %s -> %s", domain, route.Handle[0].Upstreams[0].Dial)
	return &Result{Action: ActionCreated, Domain: domain, Position: position}, nil
}

func (e *Engine) replace(ctx context.Context, domain string, port int, idx int, id string) (*Result, error) {
	route := NewRoute(domain, e.cfg.UpstreamHost, port)
	route.ID = id

	if err := e.client.Patch(ctx, e.routePath(idx), route); err != nil {
		return nil, err
	}

	e.logger.Infof("replaced route %s -> %s", domain, route.Handle[0].Upstreams[0].Dial)
	return &Result{Action: ActionReplaced, Domain: domain, Position: idx}, nil
}

func (e *Engine) routePath(idx int) string {
	return e.serverPath("routes", strconv.Itoa(idx))
}
