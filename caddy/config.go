package caddy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/hashicorp/go-multierror"

	"github.com/openrport/devhost/domain"
	"github.com/openrport/devhost/share/files"
	"github.com/openrport/devhost/share/logger"
	"github.com/openrport/devhost/share/ports"
)

const (
	DefaultServerID = "srv0"
)

var DefaultListen = []string{":443"}

var (
	ErrAdminURLInvalid        = errors.New("admin url must be an http(s) url, host:port or unix/<socket path>")
	ErrAdminSocketPathMissing = errors.New("admin unix socket path missing")
	ErrServerIDInvalid        = errors.New("server id must not be empty or contain '/'")
	ErrListenAddressInvalid   = errors.New("invalid listen address")
	ErrUnknownNameSource      = errors.New("unknown name source, use 'folder' or 'pkg'")
	ErrTLDInvalid             = errors.New("tld must be a valid DNS name")
	ErrDomainInvalid          = errors.New("domain must be a valid DNS name")
	ErrPortOutOfRange         = errors.New("port must be between 1 and 65535")
	ErrUpstreamHostInvalid    = errors.New("upstream host must be a valid IP address or hostname")
	ErrProjectDirNotFound     = errors.New("project directory not found")
	ErrLocalPortUnknown       = errors.New("unable to determine the port of the local development server")
)

// Config holds the settings for one reconciliation. After ParseAndValidate
// every optional field carries its effective value and the config is not
// modified any further.
type Config struct {
	AdminURL   string            `mapstructure:"admin_url"`
	ServerID   string            `mapstructure:"server_id"`
	Listen     []string          `mapstructure:"listen"`
	NameSource domain.NameSource `mapstructure:"name_source"`
	TLD        string            `mapstructure:"tld"`
	Domain     string            `mapstructure:"domain"`
	// FailOnActiveDomain turns a domain bound to another live port into a
	// fatal error instead of a warning.
	FailOnActiveDomain bool `mapstructure:"fail_on_active_domain"`
	// AppendRoute adds new routes after the existing ones instead of first.
	AppendRoute bool `mapstructure:"append_route"`

	Port           int           `mapstructure:"port"`
	UpstreamHost   string        `mapstructure:"upstream_host"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProjectDir     string        `mapstructure:"project_dir"`
	Manifest       string        `mapstructure:"manifest"`
	HostsFile      string        `mapstructure:"hosts_file"`
}

func (c *Config) ParseAndValidate(mLog *logger.MemLogger, filesAPI files.FileAPI) error {
	c.setDefaults(mLog)

	var result *multierror.Error

	if err := validateAdminURL(c.AdminURL); err != nil {
		result = multierror.Append(result, err)
	}

	if c.ServerID == "" || strings.Contains(c.ServerID, "/") {
		result = multierror.Append(result, ErrServerIDInvalid)
	}

	for _, addr := range c.Listen {
		if _, ok := ports.ParsePort(addr); !ok {
			result = multierror.Append(result, fmt.Errorf("%w: %q", ErrListenAddressInvalid, addr))
		}
	}

	switch c.NameSource {
	case domain.NameSourceFolder, domain.NameSourcePkg:
	default:
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrUnknownNameSource, c.NameSource))
	}

	if !govalidator.IsDNSName(c.TLD) {
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrTLDInvalid, c.TLD))
	}

	if c.Domain != "" {
		if err := ValidateDomain(c.Domain); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.Port < 0 || c.Port > ports.MaxPort {
		result = multierror.Append(result, ErrPortOutOfRange)
	}

	if !govalidator.IsHost(c.UpstreamHost) {
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrUpstreamHostInvalid, c.UpstreamHost))
	}

	if filesAPI != nil {
		exists, err := filesAPI.Exist(c.ProjectDir)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to check project directory %s: %w", c.ProjectDir, err))
		} else if !exists {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrProjectDirNotFound, c.ProjectDir))
		}
	}

	return result.ErrorOrNil()
}

func (c *Config) setDefaults(mLog *logger.MemLogger) {
	if c.AdminURL == "" {
		c.AdminURL = DefaultAdminURL
	}
	if c.ServerID == "" {
		c.ServerID = DefaultServerID
	}
	if len(c.Listen) == 0 {
		c.Listen = append([]string{}, DefaultListen...)
	}
	if c.NameSource == "" {
		c.NameSource = domain.NameSourceFolder
	}
	c.TLD = strings.Trim(c.TLD, ".")
	if c.TLD == "" {
		c.TLD = domain.DefaultTLD
	}
	if c.UpstreamHost == "" {
		c.UpstreamHost = ports.DefaultHost
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = ports.DefaultProbeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Manifest == "" {
		c.Manifest = domain.DefaultManifest
	}
	if c.HostsFile == "" {
		c.HostsFile = files.DefaultHostsFile
	}

	if c.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			mLog.Errorf("unable to get working directory: %v", err)
		}
		c.ProjectDir = wd
	}
	if abs, err := filepath.Abs(c.ProjectDir); err == nil {
		c.ProjectDir = abs
	}
	mLog.Debugf("project directory: %s", c.ProjectDir)
}

// DomainOptions returns the resolver inputs described by the config.
func (c *Config) DomainOptions() domain.Options {
	return domain.Options{
		Domain:     c.Domain,
		TLD:        c.TLD,
		NameSource: c.NameSource,
		ProjectDir: c.ProjectDir,
		Manifest:   c.Manifest,
	}
}

func ValidateDomain(d string) error {
	if !govalidator.IsDNSName(d) {
		return fmt.Errorf("%w: %q", ErrDomainInvalid, d)
	}
	return nil
}

func validateAdminURL(adminURL string) error {
	if strings.HasPrefix(adminURL, unixAdminPrefix) {
		if strings.TrimPrefix(adminURL, unixAdminPrefix) == "" {
			return ErrAdminSocketPathMissing
		}
		return nil
	}
	if !strings.Contains(adminURL, "://") {
		adminURL = "http://" + adminURL
	}
	if !strings.HasPrefix(adminURL, "http://") && !strings.HasPrefix(adminURL, "https://") {
		return fmt.Errorf("%w: %q", ErrAdminURLInvalid, adminURL)
	}
	if !govalidator.IsURL(adminURL) {
		return fmt.Errorf("%w: %q", ErrAdminURLInvalid, adminURL)
	}
	return nil
}
