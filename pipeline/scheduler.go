// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/sv/region"
)

// Scheduler runs work units on a fixed pool of workers. Each worker takes the
// next unit from a shared queue, runs it to completion and appends its result
// to Out before taking another.
type Scheduler struct {
	Env         *Env
	Out         *Outputs
	Parallelism int
}

// Run processes every region and returns the totals. A region that fails is
// logged and counted; it does not stop the others. Once ctx is canceled the
// workers finish the region at hand and take no new one; Run then returns
// an errors.Canceled error. Errors writing the outputs stop the run.
func (s *Scheduler) Run(ctx context.Context, regions []region.Region) (Stats, error) {
	queue := make(chan region.Region, len(regions))
	for _, r := range regions {
		queue <- r
	}
	close(queue)
	parallelism := s.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > len(regions) {
		parallelism = len(regions)
	}
	err := traverse.Each(parallelism, func(worker int) error {
		for r := range queue {
			if ctx.Err() != nil {
				return nil
			}
			res, err := RunRegion(ctx, s.Env, r)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error.Printf("worker %d: region %s failed: %v", worker, r.String(s.Env.Names), err)
				s.Out.Fail()
				continue
			}
			if err := s.Out.Append(res); err != nil {
				return err
			}
		}
		return nil
	})
	stats := s.Out.Stats()
	if err != nil {
		return stats, err
	}
	if ctx.Err() != nil {
		return stats, errors.E(errors.Canceled, ctx.Err(), "region scheduling interrupted")
	}
	return stats, nil
}
