package scanner

// concurrent.go: worker pool para pedir las estimaciones del oracle en paralelo.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

// estimateResult es la respuesta del oracle para el mercado en markets[idx].
type estimateResult struct {
	idx      int
	estimate domain.Estimate
	err      error
}

// estimateConcurrent pide la estimación de cada mercado usando un worker pool.
// El rate limiting lo aplica el cliente del oracle.
//
// Devuelve un slot por mercado; ok[i] es false si la estimación falló o el
// contexto expiró antes de procesarla.
//
// Si workers <= 0 usa runtime.NumCPU() × 2.
func estimateConcurrent(
	ctx context.Context,
	oracle ports.ProbabilityOracle,
	markets []domain.Market,
	workers int,
) (estimates []domain.Estimate, ok []bool, errs []error) {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	estimates = make([]domain.Estimate, len(markets))
	ok = make([]bool, len(markets))
	errs = make([]error, len(markets))

	workCh := make(chan int, len(markets))
	resultCh := make(chan estimateResult, len(markets))

	// Worker pool: cada worker toma índices de workCh y envía resultados a resultCh.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- estimateResult{idx: idx, err: err}
					continue
				}
				est, err := oracle.FetchEstimate(ctx, markets[idx])
				resultCh <- estimateResult{idx: idx, estimate: est, err: err}
			}
		}()
	}

	for i := range markets {
		workCh <- i
	}
	close(workCh)

	// Cerrar resultCh cuando todos los workers terminen.
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	failed := 0
	for r := range resultCh {
		if r.err != nil {
			errs[r.idx] = r.err
			failed++
			continue
		}
		estimates[r.idx] = r.estimate
		ok[r.idx] = true
	}

	slog.Debug("concurrent estimates complete",
		"markets", len(markets),
		"failed", failed,
		"workers", workers,
	)

	return estimates, ok, errs
}
