// Package tenant resolves the tenant discriminator attached to outbound
// requests of a multi-tenant deployment.
package tenant

import (
	"net"
	"strings"
)

// Resolver reports the tenant identifier for the current client, or "" when
// no tenant can be resolved.
type Resolver interface {
	Resolve() string
}

// Static resolves to a fixed tenant identifier.
type Static string

var _ Resolver = Static("")

func (s Static) Resolve() string { return string(s) }

// SubdomainResolver derives the tenant from the host the application is
// served on: "greenwood.shulebook.app" against base domain "shulebook.app"
// resolves to "greenwood". Bare base domains, "www", localhost and IP
// addresses resolve to no tenant.
type SubdomainResolver struct {
	host       string
	baseDomain string
}

var _ Resolver = (*SubdomainResolver)(nil)

// NewSubdomainResolver takes the serving host (port allowed) and the product
// base domain. An empty base domain falls back to treating the leftmost label
// of any host with three or more labels as the tenant.
func NewSubdomainResolver(host, baseDomain string) *SubdomainResolver {
	return &SubdomainResolver{host: stripPort(host), baseDomain: stripPort(baseDomain)}
}

func (r *SubdomainResolver) Resolve() string {
	host := strings.ToLower(r.host)
	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}

	var sub string
	if r.baseDomain != "" {
		base := strings.ToLower(r.baseDomain)
		if host == base {
			return ""
		}
		if !strings.HasSuffix(host, "."+base) {
			return ""
		}
		sub = strings.TrimSuffix(host, "."+base)
	} else {
		labels := strings.Split(host, ".")
		if len(labels) < 3 {
			return ""
		}
		sub = labels[0]
	}

	// nested subdomains keep only the leftmost label
	if i := strings.Index(sub, "."); i >= 0 {
		sub = sub[:i]
	}
	if sub == "www" {
		return ""
	}
	return sub
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
