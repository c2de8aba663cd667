// Package jobs holds the scheduled triggers around the engine. The only
// job today is the periodic cache resync.
package jobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type cacheControl interface {
	Clear()
}

// Resync periodically drops the source cache so dashboards pick up
// changes that TTL expiry alone would surface too late.
type Resync struct {
	log   zerolog.Logger
	cache cacheControl
	c     *cron.Cron
}

// NewResync schedules Clear at the given cron spec. An empty spec
// disables the job.
func NewResync(spec string, cache cacheControl, log zerolog.Logger) (*Resync, error) {
	r := &Resync{log: log, cache: cache, c: cron.New()}
	if spec == "" {
		return r, nil
	}
	if _, err := r.c.AddFunc(spec, r.run); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resync) Start() { r.c.Start() }
func (r *Resync) Stop()  { r.c.Stop() }

func (r *Resync) run() {
	r.log.Info().Msg("scheduled cache resync")
	r.cache.Clear()
}
