package seed

import (
	"errors"
	"fmt"
	"strings"
)

// Sandbox must appear in every name checked by Safeguard.
const Sandbox = "sandbox"

// ErrNotSandbox is returned when seeding is attempted outside a sandbox.
var ErrNotSandbox = errors.New("seed: refusing to seed outside a sandbox environment")

// Safeguard fails unless the function name, environment and table prefix
// all contain "sandbox".
func Safeguard(functionName, environment, prefix string) error {
	for _, n := range []struct{ field, value string }{
		{"function name", functionName},
		{"environment", environment},
		{"prefix", prefix},
	} {
		if !strings.Contains(n.value, Sandbox) {
			return fmt.Errorf("%w: %s %q", ErrNotSandbox, n.field, n.value)
		}
	}
	return nil
}
