package addons

import (
	"encoding/base64"
)

// UpstreamAuth holds the "user:pass" credential and no_proxy host set for
// an HTTP upstream and reports, through HeaderFor, the Proxy-Authorization
// value they yield for a host. Its Ask and Tell do nothing: the header on
// the wire is written by HTTPUpstreamProxyLayer.authHeader, which computes
// its value from layer.Config on its own and, unlike HeaderFor, also
// honors UpstreamCustomAuth.
type UpstreamAuth struct {
	auth    string
	noProxy map[string]bool
}

// NewUpstreamAuth returns the addon for the given "user:pass" credential
// and no-proxy host set.
func NewUpstreamAuth(auth string, noProxy map[string]bool) *UpstreamAuth {
	if noProxy == nil {
		noProxy = map[string]bool{}
	}
	return &UpstreamAuth{auth: auth, noProxy: noProxy}
}

func (a *UpstreamAuth) Name() string { return "upstream_auth" }

func (a *UpstreamAuth) Ask(event string, payload any) (any, error) {
	return nil, nil
}

func (a *UpstreamAuth) Tell(event string, payload any) {}

// HeaderFor returns the Basic Proxy-Authorization value this policy yields
// for host, or "" if none applies. The upstream_custom_auth override is not
// consulted here.
func (a *UpstreamAuth) HeaderFor(host string) string {
	if a.auth == "" || a.noProxy[host] {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.auth))
}
