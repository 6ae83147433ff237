package store

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// backends maps a target scheme (e.g. "mem", "redis") to the factory
// creating connections for it. Backends register themselves in init.
var backends = xsync.NewMapOf[string, Factory]()

// Register makes a connection factory available for the given target scheme.
// Registering the same scheme twice replaces the earlier factory.
func Register(scheme string, factory Factory) {
	backends.Store(strings.ToLower(scheme), factory)
}

// Schemes returns all registered target schemes in sorted order.
func Schemes() []string {
	var schemes []string
	backends.Range(func(scheme string, _ Factory) bool {
		schemes = append(schemes, scheme)
		return true
	})
	sort.Strings(schemes)
	return schemes
}

// Open creates a new connection for a normalized target using the factory
// registered for the target's scheme.
func Open(ctx context.Context, target string) (IConn, error) {
	u, _, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	factory, ok := backends.Load(u.Scheme)
	if !ok {
		return nil, Errorf(RetCUnsupportedOperation, "no backend registered for scheme %q (known: %s)", u.Scheme, strings.Join(Schemes(), ", "))
	}
	return factory(ctx, target)
}

// --------------------------------------------------------------------------
// Target descriptors
// --------------------------------------------------------------------------

// NormalizeTarget turns a store URI and a logical database number into the
// normalized target descriptor handed to providers and factories:
//
//	scheme://[userinfo@]host[:port]/<db>[?sorted query]
//
// Scheme and host are lower-cased, the logical database replaces any path of
// the URI and query parameters are sorted by key.
func NormalizeTarget(uri string, db int) (string, error) {
	if db < 0 {
		return "", Errorf(RetCInvalidOperation, "invalid logical database %d", db)
	}
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", Errorf(RetCInvalidOperation, "invalid target %q: %v", uri, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", Errorf(RetCInvalidOperation, "invalid target %q: expected scheme://host", uri)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = "/" + strconv.Itoa(db)
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	if q := u.Query(); len(q) > 0 {
		u.RawQuery = q.Encode() // Encode sorts by key
	} else {
		u.RawQuery = ""
	}
	return u.String(), nil
}

// ParseTarget parses a normalized target descriptor and returns the URL and
// the logical database it selects.
func ParseTarget(target string) (*url.URL, int, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, 0, Errorf(RetCInvalidOperation, "invalid target %q: %v", target, err)
	}
	if u.Scheme == "" {
		return nil, 0, Errorf(RetCInvalidOperation, "invalid target %q: missing scheme", target)
	}
	u.Scheme = strings.ToLower(u.Scheme)

	db := 0
	if p := strings.Trim(u.Path, "/"); p != "" {
		db, err = strconv.Atoi(p)
		if err != nil || db < 0 {
			return nil, 0, Errorf(RetCInvalidOperation, "invalid logical database %q in target %q", p, target)
		}
	}
	return u, db, nil
}

// Redact returns the target with any password replaced, for logging.
func Redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Redacted()
}

// CheckScheme returns an error if target does not use one of the given schemes.
func CheckScheme(target string, schemes ...string) (*url.URL, int, error) {
	u, db, err := ParseTarget(target)
	if err != nil {
		return nil, 0, err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return u, db, nil
		}
	}
	return nil, 0, fmt.Errorf("target %q: unsupported scheme %q, expected one of %v", Redact(target), u.Scheme, schemes)
}
