package layer

import (
	"strings"

	"github.com/wirespy/proxycore/pkg/errors"
)

// Factory builds a custom root layer from a Context — the extension point
// a driver needs to plug in protocol handling beyond the built-in modes,
// registered by name.
type Factory func(*Context) Layer

var customFactories = map[string]Factory{}

// RegisterMode installs a user-supplied root layer factory under name, so
// Options.Mode can reference it as "custom:<name>".
func RegisterMode(name string, f Factory) {
	customFactories[name] = f
}

// SelectRootLayer chooses the root layer for a freshly accepted connection
// by ctx.Mode.
func SelectRootLayer(ctx *Context) (Layer, error) {
	switch {
	case ctx.Mode == "regular":
		return &HTTPProxyLayer{ctx: ctx}, nil

	case ctx.Mode == "transparent":
		return &TransparentLayer{ctx: ctx}, nil

	case strings.HasPrefix(ctx.Mode, "upstream:"):
		if ctx.Config.UpstreamSpec.Scheme == "socks4" || ctx.Config.UpstreamSpec.Scheme == "socks5" || ctx.Config.UpstreamSpec.Scheme == "socks5h" {
			return &SocksUpstreamProxyLayer{ctx: ctx}, nil
		}
		return &HTTPUpstreamProxyLayer{ctx: ctx}, nil

	case ctx.Mode == "socks5":
		return &SocksUpstreamProxyLayer{ctx: ctx}, nil

	case strings.HasPrefix(ctx.Mode, "custom:"):
		name := strings.TrimPrefix(ctx.Mode, "custom:")
		f, ok := customFactories[name]
		if !ok {
			return nil, errors.NewValidationError("no custom mode registered as " + name)
		}
		return f(ctx), nil

	default:
		return nil, errors.NewValidationError("unknown proxy mode: " + ctx.Mode)
	}
}

// TransparentLayer recovers the original destination via a platform hook
// and otherwise behaves like HTTPProxyLayer against that destination. The
// platform-specific lookup (e.g. SO_ORIGINAL_DST on Linux) is out of scope
// for this repository's portable core; RecoverOriginal is the seam a
// platform package plugs into.
type TransparentLayer struct {
	ctx *Context
}

// RecoverOriginal resolves the pre-NAT destination for a transparently
// redirected connection. Overridable per platform; the zero-value
// implementation reports that transparent mode needs a platform hook
// registered — an HTTP client has no platform-specific NAT lookup either,
// since it never accepts redirected connections.
var RecoverOriginal = func(*Context) (host string, port int, err error) {
	return "", 0, errors.NewValidationError("transparent mode requires a platform-specific RecoverOriginal hook")
}

func (l *TransparentLayer) Run() error {
	host, port, err := RecoverOriginal(l.ctx)
	if err != nil {
		return err
	}
	return runForward(l.ctx, host, port, false)
}
