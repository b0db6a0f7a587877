package variables

import (
	"math/rand/v2"
	"os"
	"strings"
	"time"
)

// systemVariables builds the reserved "system" pseudo-scope: current
// timestamp, a per-resolution random value, and the process environment.
func systemVariables(now time.Time) map[string]any {
	return map[string]any{
		"timestamp": now.UTC().Format(time.RFC3339),
		"unix":      now.Unix(),
		"random":    rand.Float64(),
		"env":       envVars(),
	}
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
