package management

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BulkDeleteError reports a batch in which at least one delete failed. The
// batch is reported as a unit; Failed names the ids that did not go through.
type BulkDeleteError struct {
	Requested int
	Failed    []string
	Errs      map[string]error
}

func (e *BulkDeleteError) Error() string {
	return fmt.Sprintf("bulk delete failed for %d of %d DPRs: %s", len(e.Failed), e.Requested, strings.Join(e.Failed, ", "))
}

// DeleteSelected issues one delete per selected id concurrently, waits for all
// of them, clears the selection and refreshes the list.
func (c *Controller) DeleteSelected(ctx context.Context) error {
	c.mu.Lock()
	ids := c.selectedLocked()
	c.mu.Unlock()
	if len(ids) == 0 {
		return ErrEmptySelection
	}

	var (
		mu   sync.Mutex
		errs = map[string]error{}
	)
	// The group context is not used: one failure must not cancel the others.
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := c.backend.Remove(ctx, id); err != nil {
				mu.Lock()
				errs[id] = err
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	firstErr := g.Wait()

	c.ClearSelection()
	_ = c.Refresh(ctx)

	if firstErr == nil {
		log.Info().Int("count", len(ids)).Msg("bulk delete completed")
		return nil
	}
	failed := make([]string, 0, len(errs))
	for id := range errs {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	log.Warn().Err(firstErr).Strs("failed", failed).Int("requested", len(ids)).Msg("bulk delete failed")
	return &BulkDeleteError{Requested: len(ids), Failed: failed, Errs: errs}
}
