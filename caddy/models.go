package caddy

// The types below cover the parts of the caddy JSON config devhost reads or
// writes. Fields devhost does not care about are dropped on decode, so these
// types are never used to write back objects devhost does not own.

// ConfigTree is the root of caddy's JSON config.
type ConfigTree struct {
	Apps Apps `json:"apps"`
}

type Apps struct {
	HTTP *HTTPApp `json:"http,omitempty"`
	TLS  *TLSApp  `json:"tls,omitempty"`
}

type HTTPApp struct {
	Servers map[string]*Server `json:"servers"`
}

type Server struct {
	Listen         []string        `json:"listen"`
	Routes         []Route         `json:"routes"`
	AutomaticHTTPS *AutomaticHTTPS `json:"automatic_https,omitempty"`
}

type AutomaticHTTPS struct {
	Disable bool `json:"disable,omitempty"`
}

type Route struct {
	ID       string      `json:"@id,omitempty"`
	Match    []MatchRule `json:"match,omitempty"`
	Handle   []Handler   `json:"handle,omitempty"`
	Terminal bool        `json:"terminal,omitempty"`
}

type MatchRule struct {
	Host []string `json:"host,omitempty"`
}

type Handler struct {
	Handler   string     `json:"handler"`
	Upstreams []Upstream `json:"upstreams,omitempty"`
}

type Upstream struct {
	Dial string `json:"dial"`
}

type TLSApp struct {
	Automation *Automation `json:"automation,omitempty"`
}

type Automation struct {
	Policies []Policy `json:"policies"`
}

type Policy struct {
	Subjects []string `json:"subjects,omitempty"`
	Issuers  []Issuer `json:"issuers,omitempty"`
}

type Issuer struct {
	Module string `json:"module"`
}
