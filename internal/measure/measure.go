package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/HariAbram/scout/internal/config"
)

// Backend is the common measurement capability spec.md §9 asks for: one
// Measure(binary, args, env) -> {metric: []float64} call per trial,
// regardless of which hardware-counter tool is behind it.
type Backend interface {
	Measure(ctx context.Context, binaryPath string, args []string, env map[string]string, runs int, timeout time.Duration) (map[string][]float64, error)
}

// New selects the configured backend.
func New(cfg *config.Config, reservation *CoreReservation) (Backend, error) {
	switch cfg.Backend {
	case "likwid":
		return NewLikwidBackend(cfg.Likwid, reservation), nil
	case "perf":
		return NewPerfBackend(cfg.Perf, reservation), nil
	default:
		return nil, fmt.Errorf("measure: unknown backend %q", cfg.Backend)
	}
}
