package commands

import (
	"context"
	"time"

	"github.com/vidstash/vidstash/internal/logger"
	"github.com/vidstash/vidstash/internal/sweeper"
)

// SweepCmd runs a single reclamation pass and exits. Useful when the sweep
// is scheduled externally (cron, ECS scheduled task) instead of running
// inside the server process.
type SweepCmd struct {
	SweepThreshold time.Duration `help:"inactivity threshold before an anonymous session is reclaimed" default:"720h" env:"VIDSTASH_SWEEP_THRESHOLD"`

	StoreType     string             `help:"store type (memory or postgres)" default:"postgres" env:"VIDSTASH_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *SweepCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	st, err := buildStores(ctx, c.StoreType, c.PostgresStore, log)
	if err != nil {
		return err
	}
	defer st.close()

	sw := sweeper.New(st.anonSessions, st.userSessions, st.videos, sweeper.Config{
		Threshold: c.SweepThreshold,
	}, log)

	swept, err := sw.Sweep(ctx)
	if err != nil {
		return err
	}

	log.Info().Int("sessions_swept", swept).Msg("Sweep complete")
	return nil
}
