package caddy

import (
	"net"
	"strconv"

	"github.com/openrport/devhost/share/ports"
)

const HandlerReverseProxy = "reverse_proxy"

// FindRouteByHost returns the first route with a host matcher listing host
// and its index, or nil and -1.
func FindRouteByHost(routes []Route, host string) (*Route, int) {
	for i := range routes {
		for _, m := range routes[i].Match {
			if containsString(m.Host, host) {
				return &routes[i], i
			}
		}
	}
	return nil, -1
}

// ExtractUpstreamPort returns the port of the first upstream of the first
// reverse_proxy handler that has upstreams.
func ExtractUpstreamPort(route Route) (int, bool) {
	for _, h := range route.Handle {
		if h.Handler != HandlerReverseProxy || len(h.Upstreams) == 0 {
			continue
		}
		return ports.ParsePort(h.Upstreams[0].Dial)
	}
	return 0, false
}

// NewRoute builds the terminal route proxying domain to upstreamHost:port.
func NewRoute(domain, upstreamHost string, port int) Route {
	if upstreamHost == "" {
		upstreamHost = ports.DefaultHost
	}
	return Route{
		Match: []MatchRule{
			{Host: []string{domain}},
		},
		Handle: []Handler{
			{
				Handler: HandlerReverseProxy,
				Upstreams: []Upstream{
					{Dial: net.JoinHostPort(upstreamHost, strconv.Itoa(port))},
				},
			},
		},
		Terminal: true,
	}
}
