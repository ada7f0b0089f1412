package main

import (
	"context"
	"time"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/world"
)

// worldTicker продвигает обновления блоков и освещение всех измерений
type worldTicker struct {
	world    *world.World
	tick     time.Duration
	autosave time.Duration
	updates  int
	budget   int
}

func newWorldTicker(w *world.World, cfg *config.Config) *worldTicker {
	return &worldTicker{
		world:    w,
		tick:     cfg.World.Tick(),
		autosave: cfg.World.Autosave(),
		updates:  cfg.World.BlockUpdateLimit,
		budget:   cfg.Lighting.BudgetPerTick,
	}
}

// Run блокируется до отмены ctx
func (t *worldTicker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	var save <-chan time.Time
	if t.autosave > 0 {
		saveTicker := time.NewTicker(t.autosave)
		defer saveTicker.Stop()
		save = saveTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.step(ctx)
		case <-save:
			start := time.Now()
			if err := t.world.Save(); err != nil {
				logging.Error("❌ Автосохранение не удалось: %v", err)
				continue
			}
			logging.Info("💾 Автосохранение за %s", time.Since(start).Round(time.Millisecond))
		}
	}
}

func (t *worldTicker) step(ctx context.Context) {
	for _, d := range t.world.Dimensions() {
		d.ProcessBlockUpdates(t.updates)
		d.Lighter().Drain(ctx, t.budget)
	}
}
