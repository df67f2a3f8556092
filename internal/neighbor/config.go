package neighbor

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Backend names accepted by LATTICE_NL.
const (
	// BackendDirect enumerates periodic images directly. It is the
	// reference implementation: it supports mixed per-axis periodic
	// boundaries and honors the self-interaction flags natively.
	BackendDirect = "direct"
	// BackendCellList bins ghost images into a Cartesian cell grid.
	// Requires StrictSelfInteraction and no trivial self edges.
	BackendCellList = "celllist"
	// BackendKDTree queries a k-d tree of ghost images. Requires
	// uniform periodic boundaries and cannot represent trivial
	// self-interaction at all.
	BackendKDTree = "kdtree"
)

// Environment variables read once at first use.
const (
	// EnvBackend selects the neighbor-search backend ("direct",
	// "celllist" or "kdtree"). Default: "direct".
	EnvBackend = "LATTICE_NL"
	// EnvErrorOnNoEdges controls whether a system in which no atom has
	// any neighbor is a fatal configuration error ("true"/"false").
	// Default: "true".
	EnvErrorOnNoEdges = "LATTICE_ERROR_ON_NO_EDGES"
)

// Config is the process-wide neighbor-search configuration. It is
// resolved once from the environment and treated as immutable; tests
// construct values directly and pass them through Options.
type Config struct {
	// Backend is the neighbor-search backend name.
	Backend string
	// ErrorOnNoEdges makes an all-isolated-atom system a fatal error.
	ErrorOnNoEdges bool
}

// ConfigFromEnv builds a Config from the environment, validating the
// backend name against the fixed set.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Backend:        BackendDirect,
		ErrorOnNoEdges: true,
	}

	if v, ok := os.LookupEnv(EnvBackend); ok {
		cfg.Backend = strings.ToLower(strings.TrimSpace(v))
		if err := validateBackend(cfg.Backend); err != nil {
			return Config{}, err
		}
	}

	if v, ok := os.LookupEnv(EnvErrorOnNoEdges); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			cfg.ErrorOnNoEdges = true
		case "false":
			cfg.ErrorOnNoEdges = false
		default:
			return Config{}, fmt.Errorf("%s must be \"true\" or \"false\", got %q", EnvErrorOnNoEdges, v)
		}
	}

	return cfg, nil
}

func validateBackend(name string) error {
	switch name {
	case BackendDirect, BackendCellList, BackendKDTree:
		return nil
	default:
		return fmt.Errorf("unknown neighbor backend %s=%q (must be one of %q, %q, %q)",
			EnvBackend, name, BackendDirect, BackendCellList, BackendKDTree)
	}
}

var defaultConfig = sync.OnceValues(ConfigFromEnv)

// DefaultConfig returns the process-wide configuration, resolving it
// from the environment exactly once.
func DefaultConfig() (Config, error) {
	return defaultConfig()
}
