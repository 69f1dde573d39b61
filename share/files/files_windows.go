//go:build windows

package files

// DefaultHostsFile is where the resolver reads static host mappings.
const DefaultHostsFile = `C:\Windows\System32\drivers\etc\hosts`
