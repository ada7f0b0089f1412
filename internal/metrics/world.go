// Package metrics экспортирует состояние мира в Prometheus.
//
// Все методы *World допускают nil-получатель: компоненты, созданные без
// метрик (например, в тестах), просто ничего не записывают.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// World собирает метрики хранилища мира и освещения
type World struct {
	chunksResident  prometheus.Gauge
	regionsResident prometheus.Gauge
	queueDepth      prometheus.Gauge
	blockUpdates    prometheus.Gauge

	lightingOps     *prometheus.CounterVec
	regionIO        *prometheus.HistogramVec
	blockChanges    prometheus.Counter
	chunksGenerated prometheus.Counter
	chunksLoaded    prometheus.Counter

	processRSS prometheus.Gauge
	processCPU prometheus.Gauge

	process *ProcessStats
}

// NewWorld создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewWorld(reg prometheus.Registerer) *World {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	w := &World{
		chunksResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "chunks_resident",
			Help:      "Количество чанков в памяти.",
		}),
		regionsResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "regions_resident",
			Help:      "Количество регионов в памяти.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "lighting_queue_depth",
			Help:      "Операций освещения в очереди.",
		}),
		blockUpdates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "block_updates_pending",
			Help:      "Ожидающих обновлений соседних блоков.",
		}),
		lightingOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "lighting_operations_total",
			Help:      "Выполненные операции освещения.",
		}, []string{"mode", "kind"}),
		regionIO: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blockworld",
			Name:      "region_io_duration_seconds",
			Help:      "Длительность чтения и записи файлов регионов.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"op"}),
		blockChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "block_changes_total",
			Help:      "Изменения блоков, вызвавшие уведомление.",
		}),
		chunksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "chunks_generated_total",
			Help:      "Сгенерированные чанки.",
		}),
		chunksLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "chunks_loaded_total",
			Help:      "Чанки, загруженные из файлов регионов.",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "process_resident_memory_bytes",
			Help:      "RSS процесса по данным gopsutil.",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "process_cpu_percent",
			Help:      "Загрузка CPU процессом.",
		}),
		process: NewProcessStats(),
	}

	reg.MustRegister(
		w.chunksResident, w.regionsResident, w.queueDepth, w.blockUpdates,
		w.lightingOps, w.regionIO, w.blockChanges, w.chunksGenerated, w.chunksLoaded,
		w.processRSS, w.processCPU,
	)
	return w
}

// SetResident обновляет количество регионов и чанков в памяти
func (w *World) SetResident(regions, chunks int) {
	if w == nil {
		return
	}
	w.regionsResident.Set(float64(regions))
	w.chunksResident.Set(float64(chunks))
}

// SetQueueDepth обновляет длину очереди освещения
func (w *World) SetQueueDepth(n int) {
	if w == nil {
		return
	}
	w.queueDepth.Set(float64(n))
}

// SetPendingBlockUpdates обновляет длину очереди обновлений блоков
func (w *World) SetPendingBlockUpdates(n int) {
	if w == nil {
		return
	}
	w.blockUpdates.Set(float64(n))
}

// LightingOperation учитывает выполненную операцию освещения
func (w *World) LightingOperation(mode, kind string) {
	if w == nil {
		return
	}
	w.lightingOps.WithLabelValues(mode, kind).Inc()
}

// ObserveRegionIO записывает длительность операции с файлом региона
func (w *World) ObserveRegionIO(op string, d time.Duration) {
	if w == nil {
		return
	}
	w.regionIO.WithLabelValues(op).Observe(d.Seconds())
}

// BlockChanged учитывает изменение блока
func (w *World) BlockChanged() {
	if w == nil {
		return
	}
	w.blockChanges.Inc()
}

// ChunkGenerated учитывает сгенерированный чанк
func (w *World) ChunkGenerated() {
	if w == nil {
		return
	}
	w.chunksGenerated.Inc()
}

// ChunkLoaded учитывает загруженный чанк
func (w *World) ChunkLoaded() {
	if w == nil {
		return
	}
	w.chunksLoaded.Inc()
}

// CollectProcess снимает RSS и CPU процесса
func (w *World) CollectProcess() error {
	if w == nil {
		return nil
	}
	rss, err := w.process.MemoryRSS()
	if err != nil {
		return err
	}
	w.processRSS.Set(float64(rss))

	cpu, err := w.process.CPUUsage()
	if err != nil {
		return err
	}
	w.processCPU.Set(cpu)
	return nil
}

// Run периодически обновляет метрики процесса до отмены ctx
func (w *World) Run(ctx context.Context, interval time.Duration) {
	if w == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.CollectProcess()
		case <-ctx.Done():
			return
		}
	}
}
