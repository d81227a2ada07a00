package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Warm resolves and ensures every ref using a pool of WithWarmPoolSize
// workers. It returns the number of refs ready and the joined failures.
func (ix *Indexer) Warm(ctx context.Context, refs []string) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	pool, err := ants.NewPool(ix.poolSize)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ready int
		errs  []error
	)
	record := func(ref string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			return
		}
		ready++
	}

	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			infos, err := ix.store.GetObjectInfo(ctx, []string{ref})
			if err == nil {
				_, err = ix.Ensure(ctx, infos[0])
			}
			if err != nil {
				ix.logger.Warn("warm-up failed", zap.String("ref", ref), zap.Error(err))
			}
			record(ref, err)
		})
		if submitErr != nil {
			wg.Done()
			record(ref, submitErr)
		}
	}
	wg.Wait()
	ix.logger.Info("warm-up finished", zap.Int("ready", ready), zap.Int("failed", len(errs)))
	return ready, errors.Join(errs...)
}
