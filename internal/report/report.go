// Package report persists finished backtest results.
package report

import (
	"context"
	"errors"

	"backtest-core/internal/backtest"
)

// Multi fans results out to several exporters. Every exporter runs even when
// an earlier one fails; the errors are joined.
type Multi []backtest.Exporter

func (m Multi) Export(ctx context.Context, results []backtest.Result) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Export(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
