// Package clientinfo identifies storefront builds calling the proxy and
// enforces the minimum supported client version.
package clientinfo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"

	"rentsync/internal/model"
)

// Header is the request header carrying the client identity.
// Format: name="web", version="1.4.0" (RFC 8941 Dictionary).
const Header = "Rental-Client"

// Info identifies a storefront client build.
type Info struct {
	Name    string
	Version string
}

// Parse extracts client identity from the Rental-Client header.
//
// Examples:
//   - name="web", version="1.4.0"  → {web 1.4.0}
//   - version="2.0.0";build=17     → {"" 2.0.0} (params ignored)
//
// Returns error if header is empty, malformed, or a value is not a string.
func Parse(header string) (Info, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Info{}, errors.New("empty Rental-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return Info{}, fmt.Errorf("invalid Rental-Client header: %w", err)
	}

	var info Info
	if info.Name, err = stringMember(dict, "name"); err != nil {
		return Info{}, err
	}
	if info.Version, err = stringMember(dict, "version"); err != nil {
		return Info{}, err
	}
	return info, nil
}

func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", nil
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return s, nil
}

// Format renders info as a Rental-Client header value.
func Format(info Info) (string, error) {
	dict := httpsfv.NewDictionary()
	if info.Name != "" {
		dict.Add("name", httpsfv.NewItem(info.Name))
	}
	if info.Version != "" {
		dict.Add("version", httpsfv.NewItem(info.Version))
	}
	return httpsfv.Marshal(dict)
}

// Gate rejects clients older than a minimum version. The zero Gate admits
// everyone.
type Gate struct {
	min string
}

// NewGate returns a gate for minimum, which may be empty to disable it.
func NewGate(minimum string) (Gate, error) {
	if minimum == "" {
		return Gate{}, nil
	}
	v := canonical(minimum)
	if !semver.IsValid(v) {
		return Gate{}, fmt.Errorf("minimum client version %q is not a semantic version", minimum)
	}
	return Gate{min: v}, nil
}

// Enabled reports whether the gate enforces a minimum.
func (g Gate) Enabled() bool { return g.min != "" }

// Check admits info or returns a 426 APIError. Clients that send no version
// are admitted; a version that does not parse is treated as outdated.
func (g Gate) Check(info Info) error {
	if g.min == "" || info.Version == "" {
		return nil
	}
	v := canonical(info.Version)
	if !semver.IsValid(v) || semver.Compare(v, g.min) < 0 {
		return model.NewClientOutdatedError(info.Version, strings.TrimPrefix(g.min, "v"))
	}
	return nil
}

// canonical adds the "v" prefix x/mod/semver requires.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

type contextKey struct{}

// WithInfo returns ctx carrying info.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext returns the client info stored by the middleware, if any.
func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(contextKey{}).(Info)
	return info, ok
}
