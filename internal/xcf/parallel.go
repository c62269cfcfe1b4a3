package xcf

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// WorkItem is one region to query.
type WorkItem struct {
	Seq    int
	Region Region
}

// WorkResult holds the records of one region.
type WorkResult struct {
	Seq     int
	Region  Region
	Records []*vcf.Variant
	Path    QueryPath
	Stats   Stats
	Err     error
}

// ParallelQuery answers regions from items using workers independent
// Readers of path, each with its own file handle and index.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used. An error is returned only when
// a Reader cannot be opened; query failures are reported per result.
func ParallelQuery(ctx context.Context, path string, opts Options, items <-chan WorkItem, workers int) (<-chan WorkResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	readers := make([]*Reader, workers)
	var open errgroup.Group
	for i := range readers {
		open.Go(func() error {
			r, err := Open(path, opts)
			readers[i] = r
			return err
		})
	}
	if err := open.Wait(); err != nil {
		for _, r := range readers {
			if r != nil {
				r.Close()
			}
		}
		return nil, err
	}

	results := make(chan WorkResult, 2*workers)
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range readers {
		g.Go(func() error {
			defer r.Close()
			for {
				var item WorkItem
				var ok bool
				select {
				case <-ctx.Done():
					return ctx.Err()
				case item, ok = <-items:
					if !ok {
						return nil
					}
				}
				select {
				case results <- queryOne(r, item):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	return results, nil
}

func queryOne(r *Reader, item WorkItem) WorkResult {
	res := WorkResult{Seq: item.Seq, Region: item.Region}
	s, err := r.Query(item.Region)
	if err != nil {
		res.Err = err
		return res
	}
	res.Records, res.Err = s.Collect()
	res.Path = s.Path()
	res.Stats = s.Stats()
	return res
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// QueryRegions runs regions through ParallelQuery and calls fn for each
// result in request order.
func QueryRegions(ctx context.Context, path string, opts Options, regions []Region, workers int, fn func(WorkResult) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan WorkItem)
	results, err := ParallelQuery(ctx, path, opts, items, workers)
	if err != nil {
		return err
	}

	go func() {
		defer close(items)
		for i, region := range regions {
			select {
			case items <- WorkItem{Seq: i, Region: region}:
			case <-ctx.Done():
				return
			}
		}
	}()

	err = OrderedCollect(results, func(r WorkResult) error {
		if err := fn(r); err != nil {
			cancel()
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}
