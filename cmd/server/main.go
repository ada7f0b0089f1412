package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/annel0/blockworld/internal/api"
	"github.com/annel0/blockworld/internal/api/replay"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/observability"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $BLOCKWORLD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	if cfg.Logging.File {
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.CloseDefaultLogger()
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetDefaultLevel(level)
	} else {
		logging.Warn("⚠️ Неизвестный уровень логирования %q, используется INFO", cfg.Logging.Level)
	}

	logging.Info("🧱 Запуск Blockworld: мир %q в %s", cfg.World.Name, cfg.World.Dir)

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("⚠️ Ошибка остановки телеметрии: %v", err)
		}
	}()

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("шина событий: %w", err)
	}
	defer bus.Close()
	eventbus.Init(bus)

	if sub, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	} else {
		defer sub.Unsubscribe()
	}

	journal := replay.NewReplayService(replay.NewMemoryStore(cfg.EventBus.Buffer))
	if sub, err := journal.Record(ctx, bus); err != nil {
		logging.Warn("⚠️ Журнал событий не запущен: %v", err)
	} else {
		defer sub.Unsubscribe()
	}

	// === МЕТРИКИ ===
	worldMetrics := metrics.NewWorld(prometheus.DefaultRegisterer)
	go worldMetrics.Run(ctx, 5*time.Second)
	go eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer).Run(ctx, 5*time.Second)

	// === БЛОКИ ===
	blocks := implementations.NewDefaultRegistry()
	if cfg.Blocks.Catalog != "" {
		n, err := block.LoadCatalog(cfg.Blocks.Catalog, blocks)
		if err != nil {
			return fmt.Errorf("каталог блоков: %w", err)
		}
		logging.Info("📚 Каталог блоков %s: переопределено %d блоков", cfg.Blocks.Catalog, n)
	}

	// === МИР ===
	w, err := world.OpenOrCreate(cfg.World.Dir, cfg.World.Name, cfg.World.Seed, cfg.World.Generator, world.Options{
		Blocks:          blocks,
		Metrics:         worldMetrics,
		DisableLighting: !cfg.Lighting.LightingEnabled(),
		Listeners:       []world.Listener{world.NewBusNotifier(bus, cfg.Telemetry.ServiceName)},
	})
	if err != nil {
		return fmt.Errorf("мир: %w", err)
	}
	defer func() {
		if cfg.Storage.SnapshotOnClose {
			archive(cfg, w)
		}
		if err := w.Close(); err != nil {
			logging.Error("❌ Ошибка сохранения мира: %v", err)
		}
	}()

	overworld, err := w.Dimension(world.Overworld)
	if err != nil {
		return err
	}
	spawn := w.Manifest().SpawnPoint.Voxel()
	err = overworld.Initialize(ctx, spawn, cfg.World.SpawnRadius, func(done, total int) {
		if done == total || done%25 == 0 {
			logging.Info("🗺️ Спавн: %d/%d чанков", done, total)
		}
	})
	if err != nil {
		return fmt.Errorf("подготовка спавна: %w", err)
	}

	// === REST API ===
	restPort := cfg.Server.GetRESTPort()
	restServer := api.NewServer(api.Config{
		Port:   fmt.Sprintf(":%d", restPort),
		World:  w,
		Mode:   cfg.Server.Mode,
		Replay: journal,
	})
	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			stop()
		}
	}()

	var metricsServer *http.Server
	if metricsPort := cfg.Server.GetMetricsPort(); metricsPort != restPort {
		metricsServer = startMetricsServer(metricsPort)
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d", restPort)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", restPort)

	// === ТИК МИРА ===
	ticker := newWorldTicker(w, cfg)
	ticker.Run(ctx)

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Получен сигнал завершения, остановка сервисов...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
		}
	}
	return nil
}

func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий в памяти (буфер %d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		return nil, err
	}
	logging.Info("🚌 JetStream шина: %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}

func startMetricsServer(port int) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()
	logging.Info("📈 Prometheus метрики: http://localhost:%d/metrics", port)
	return srv
}

// archive сохраняет снимок всех резидентных чанков в BadgerDB
func archive(cfg *config.Config, w *world.World) {
	dir := cfg.Storage.SnapshotDir
	if dir == "" {
		dir = filepath.Join(cfg.World.Dir, "archive")
	}
	ws, err := storage.NewWorldStorage(dir)
	if err != nil {
		logging.Error("❌ Архив снимков недоступен: %v", err)
		return
	}
	defer ws.Close()

	for _, d := range w.Dimensions() {
		if _, err := ws.ArchiveDimension(d); err != nil {
			logging.Error("❌ Ошибка архивации измерения %d: %v", d.ID(), err)
		}
	}
}
