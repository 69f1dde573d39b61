package caddy

import (
	"context"
	"encoding/json"

	mapset "github.com/deckarep/golang-set"
)

// IssuerInternal is caddy's locally trusted, self-signed certificate issuer.
const IssuerInternal = "internal"

// Bootstrap makes sure the managed server exists with at least the
// configured listen addresses and that domain has an internal issuer TLS
// policy. Running it repeatedly converges on the same config tree.
func (e *Engine) Bootstrap(ctx context.Context, domain string) error {
	var root map[string]json.RawMessage
	found, err := e.client.Get(ctx, configPath(), &root)
	if err != nil {
		return err
	}
	if !found || len(root) == 0 {
		return e.seed(ctx, domain)
	}

	existed, err := e.ensureServer(ctx)
	if err != nil {
		return err
	}
	if existed {
		if err := e.mergeServer(ctx); err != nil {
			return err
		}
	}

	return e.ensureTLSPolicy(ctx, domain)
}

func (e *Engine) seed(ctx context.Context, domain string) error {
	e.logger.Infof("caddy config is empty, seeding server %q", e.cfg.ServerID)

	cfg := ConfigTree{
		Apps: Apps{
			HTTP: &HTTPApp{
				Servers: map[string]*Server{
					e.cfg.ServerID: e.newServer(),
				},
			},
			TLS: &TLSApp{
				Automation: &Automation{
					Policies: []Policy{NewInternalPolicy(domain)},
				},
			},
		},
	}

	return e.client.Post(ctx, configPath(), cfg)
}

func (e *Engine) newServer() *Server {
	return &Server{
		Listen: append([]string{}, e.cfg.Listen...),
		Routes: []Route{},
	}
}

// ensurePath creates path with placeholder when reading it yields nothing.
func (e *Engine) ensurePath(ctx context.Context, path string, placeholder interface{}) (created bool, err error) {
	found, err := e.client.Get(ctx, path, nil)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	e.logger.Debugf("creating %s", path)
	if err := e.client.Post(ctx, path, placeholder); err != nil {
		return false, err
	}
	return true, nil
}

// ensureServer reports whether the managed server was already present.
func (e *Engine) ensureServer(ctx context.Context) (existed bool, err error) {
	parents := [][]string{
		{"apps"},
		{"apps", "http"},
		{"apps", "http", "servers"},
	}
	for _, p := range parents {
		if _, err := e.ensurePath(ctx, configPath(p...), map[string]interface{}{}); err != nil {
			return false, err
		}
	}

	created, err := e.ensurePath(ctx, e.serverPath(), e.newServer())
	if err != nil {
		return false, err
	}
	if created {
		e.logger.Infof("created server %q listening on %v", e.cfg.ServerID, e.cfg.Listen)
	}
	return !created, nil
}

// mergeServer adds missing listen addresses to an existing server and turns
// automatic HTTPS back on if it was disabled.
func (e *Engine) mergeServer(ctx context.Context) error {
	var srv Server
	if _, err := e.client.Get(ctx, e.serverPath(), &srv); err != nil {
		return err
	}

	merged, changed := UnionListen(srv.Listen, e.cfg.Listen)
	if changed {
		e.logger.Infof("server %q listen addresses: %v -> %v", e.cfg.ServerID, srv.Listen, merged)
		listenPath := e.serverPath("listen")
		var err error
		if srv.Listen == nil {
			err = e.client.Post(ctx, listenPath, merged)
		} else {
			err = e.client.Patch(ctx, listenPath, merged)
		}
		if err != nil {
			return err
		}
	}

	if srv.AutomaticHTTPS != nil && srv.AutomaticHTTPS.Disable {
		e.logger.Infof("re-enabling automatic https on server %q", e.cfg.ServerID)
		if err := e.client.Patch(ctx, e.serverPath("automatic_https", "disable"), false); err != nil {
			return err
		}
	}

	return nil
}

// UnionListen appends the desired addresses missing from current, keeping
// the order of both lists. Addresses are never removed.
func UnionListen(current, desired []string) (merged []string, changed bool) {
	seen := mapset.NewSet()
	merged = make([]string, 0, len(current)+len(desired))
	for _, addr := range current {
		seen.Add(addr)
		merged = append(merged, addr)
	}
	for _, addr := range desired {
		if seen.Contains(addr) {
			continue
		}
		seen.Add(addr)
		merged = append(merged, addr)
		changed = true
	}
	return merged, changed
}

func (e *Engine) ensureTLSPolicy(ctx context.Context, domain string) error {
	containers := []struct {
		path        []string
		placeholder interface{}
	}{
		{path: []string{"apps", "tls"}, placeholder: map[string]interface{}{}},
		{path: []string{"apps", "tls", "automation"}, placeholder: map[string]interface{}{}},
		{path: []string{"apps", "tls", "automation", "policies"}, placeholder: []Policy{}},
	}
	for _, c := range containers {
		if _, err := e.ensurePath(ctx, configPath(c.path...), c.placeholder); err != nil {
			return err
		}
	}

	policiesPath := configPath("apps", "tls", "automation", "policies")
	var policies []Policy
	if _, err := e.client.Get(ctx, policiesPath, &policies); err != nil {
		return err
	}
	if HasInternalPolicy(policies, domain) {
		return nil
	}

	e.logger.Infof("adding internal issuer tls policy for %s", domain)
	return e.client.Post(ctx, policiesPath, NewInternalPolicy(domain))
}

func NewInternalPolicy(domain string) Policy {
	return Policy{
		Subjects: []string{domain},
		Issuers:  []Issuer{{Module: IssuerInternal}},
	}
}

// HasInternalPolicy reports whether a policy lists domain as a subject and
// uses the internal issuer.
func HasInternalPolicy(policies []Policy, domain string) bool {
	for _, p := range policies {
		if !containsString(p.Subjects, domain) {
			continue
		}
		for _, issuer := range p.Issuers {
			if issuer.Module == IssuerInternal {
				return true
			}
		}
	}
	return false
}

func (e *Engine) serverPath(segments ...string) string {
	return configPath(append([]string{"apps", "http", "servers", e.cfg.ServerID}, segments...)...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
