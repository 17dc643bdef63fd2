package oauth

import (
	"fmt"
	"slices"
	"strings"

	"go.pilab.hu/tokend/domain"
	"go.pilab.hu/tokend/errors"
)

// ResolveScope validates a requested scope string against the application's
// registered scope set. An empty request resolves to the application's
// default scope. On success the original string is returned unchanged, so
// caller-specified ordering and spacing survive.
func ResolveScope(requested string, app *domain.Application) (string, error) {
	if requested == "" {
		return app.DefaultScope, nil
	}

	for _, s := range strings.Fields(requested) {
		if !slices.Contains(app.ValidScopes, s) {
			return "", errors.NewInvalidScope(fmt.Sprintf("scope %q is not granted to this client", s))
		}
	}

	return requested, nil
}
