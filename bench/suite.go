//go:build linux && (amd64 || arm64)

package bench

import (
	"context"
	"fmt"
	"log/slog"
)

// Case is one configuration of a suite.
type Case struct {
	Operation Operation
	VMACount  int
}

// RunSuite runs every case in order, one at a time, using base for
// everything but the operation and VMA count. emit is called with each
// result as soon as its configuration has been aggregated. Cancelling ctx
// stops the suite between configurations; a configuration in progress
// always runs to completion.
func RunSuite(
	ctx context.Context,
	logger *slog.Logger,
	cases []Case,
	base Config,
	emit func(*Result) error,
) ([]*Result, error) {
	results := make([]*Result, 0, len(cases))

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		cfg := base
		cfg.Operation = c.Operation
		cfg.VMACount = c.VMACount

		result, err := Run(ctx, logger, cfg)
		if err != nil {
			return results, fmt.Errorf("%s vma=%d: %w",
				c.Operation, c.VMACount, err)
		}

		results = append(results, result)

		if emit != nil {
			if err := emit(result); err != nil {
				return results, fmt.Errorf("emit %s vma=%d: %w",
					c.Operation, c.VMACount, err)
			}
		}
	}

	return results, nil
}
