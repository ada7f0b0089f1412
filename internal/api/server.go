package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/blockworld/internal/api/replay"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/middleware"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/chunk"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Server - отладочный REST API поверх мира
type Server struct {
	router  *gin.Engine
	world   *world.World
	replay  *replay.ReplayService
	port    string
	process *metrics.ProcessStats
	log     *logging.Logger

	srv *http.Server
}

// Config содержит конфигурацию REST сервера
type Config struct {
	Port       string                // порт или адрес, ":8088" по умолчанию
	World      *world.World          // обслуживаемый мир
	Mode       string                // режим gin: release, debug, test
	Replay     *replay.ReplayService // журнал событий; nil - /api/events недоступен
	Registerer prometheus.Registerer // куда регистрировать HTTP-метрики
	Gatherer   prometheus.Gatherer   // откуда отдавать /metrics
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ChunkSummary - краткое описание резидентного чанка
type ChunkSummary struct {
	Coords           vec.GlobalChunk `json:"coords"`
	TerrainPopulated bool            `json:"terrain_populated"`
	TileEntities     int             `json:"tile_entities"`
	LastUpdate       int64           `json:"last_update"`
	Dirty            bool            `json:"dirty"`
	HeightMap        []int           `json:"height_map"`
}

// BlockResponse - дескриптор блока с именем его провайдера
type BlockResponse struct {
	block.Descriptor
	Name string `json:"name"`
}

// NewServer создаёт REST сервер и настраивает маршруты
func NewServer(cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	gin.SetMode(cfg.Mode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())
	router.Use(otelgin.Middleware("blockworld_api"))

	promMw := middleware.NewPrometheusMiddleware("blockworld_api", cfg.Registerer)
	router.Use(promMw.Handler())
	middleware.RegisterMetricsEndpoint(router, cfg.Gatherer)

	s := &Server{
		router:  router,
		world:   cfg.World,
		replay:  cfg.Replay,
		port:    cfg.Port,
		process: metrics.NewProcessStats(),
		log:     logging.GetServerLogger(),
	}
	s.srv = &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/dimensions/:dim/blocks/:x/:y/:z", s.handleBlock)
		api.GET("/dimensions/:dim/chunks/:x/:z", s.handleChunk)
		api.GET("/lighting", s.handleLighting)
		api.GET("/stats", s.handleStats)
		api.POST("/save", s.handleSave)
		api.GET("/events", s.handleEvents)
		api.GET("/events/stats", s.handleEventStats)
		api.GET("/events/types", s.handleEventTypes)
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, GenericResponse{Success: false, Message: msg})
}

func intParams(c *gin.Context, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		v, err := strconv.Atoi(c.Param(name))
		if err != nil {
			return nil, fmt.Errorf("параметр %s: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

// dimension находит измерение по параметру :dim, отвечая 400/404 при ошибке
func (s *Server) dimension(c *gin.Context) (*world.Dimension, bool) {
	id, err := strconv.Atoi(c.Param("dim"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Неверный номер измерения")
		return nil, false
	}
	d, err := s.world.Dimension(id)
	if errors.Is(err, world.ErrUnknownDimension) {
		fail(c, http.StatusNotFound, "Измерение не найдено")
		return nil, false
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return d, true
}

// handleHealth отвечает на проверку живости
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"uptime": s.process.Uptime(),
	})
}

// handleBlock возвращает дескриптор блока; чанки не загружаются
func (s *Server) handleBlock(c *gin.Context) {
	d, ok := s.dimension(c)
	if !ok {
		return
	}
	xyz, err := intParams(c, "x", "y", "z")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	pos := vec.GlobalVoxel{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	if !d.IsValidPosition(pos) {
		fail(c, http.StatusNotFound, "Чанк не загружен")
		return
	}

	desc := d.GetBlockData(pos)
	resp := BlockResponse{Descriptor: desc}
	if p := d.Blocks().Provider(desc.ID); p != nil {
		resp.Name = p.Name()
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок получен", Data: resp})
}

func parseEffort(s string) (world.LoadEffort, bool) {
	switch s {
	case "", "memory":
		return world.InMemory, true
	case "load":
		return world.Load, true
	case "generate":
		return world.Generate, true
	default:
		return 0, false
	}
}

// handleChunk возвращает сводку чанка, при необходимости загружая его
func (s *Server) handleChunk(c *gin.Context) {
	d, ok := s.dimension(c)
	if !ok {
		return
	}
	xz, err := intParams(c, "x", "z")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	effort, ok := parseEffort(c.Query("effort"))
	if !ok {
		fail(c, http.StatusBadRequest, "effort должен быть memory, load или generate")
		return
	}

	ch, err := d.GetChunk(vec.GlobalChunk{X: xz[0], Z: xz[1]}, effort)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if ch == nil {
		fail(c, http.StatusNotFound, "Чанк не найден")
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Чанк получен", Data: summarize(ch)})
}

func summarize(ch *chunk.Chunk) ChunkSummary {
	heights := make([]int, 0, chunk.ColumnCount)
	for z := 0; z < vec.ChunkDepth; z++ {
		for x := 0; x < vec.ChunkWidth; x++ {
			heights = append(heights, ch.GetHeight(vec.LocalColumn{X: x, Z: z}))
		}
	}
	return ChunkSummary{
		Coords:           ch.Coordinates(),
		TerrainPopulated: ch.TerrainPopulated(),
		TileEntities:     ch.TileEntityCount(),
		LastUpdate:       ch.LastUpdate(),
		Dirty:            ch.IsDirty(),
		HeightMap:        heights,
	}
}

// handleLighting возвращает глубину очередей освещения по измерениям
func (s *Server) handleLighting(c *gin.Context) {
	queues := make(map[string]gin.H)
	total := 0
	for _, d := range s.world.Dimensions() {
		n := d.LightingQueue().Len()
		total += n
		queues[strconv.Itoa(d.ID())] = gin.H{
			"queue":   n,
			"enabled": d.LightingEnabled(),
		}
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние освещения",
		Data:    gin.H{"dimensions": queues, "total": total},
	})
}

// handleStats возвращает статистику мира и процесса
func (s *Server) handleStats(c *gin.Context) {
	dims := make(map[string]world.Stats)
	for _, d := range s.world.Dimensions() {
		dims[strconv.Itoa(d.ID())] = d.Stats()
	}
	m := s.world.Manifest()
	data := gin.H{
		"world":      m.Name,
		"seed":       m.Seed,
		"generator":  m.ChunkProvider,
		"dimensions": dims,
		"uptime":     s.process.Uptime(),
		"heap":       s.process.HeapStats(),
	}
	if rss, err := s.process.MemoryRSS(); err == nil {
		data["rss"] = rss
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика мира", Data: data})
}

// handleSave сохраняет мир на диск
func (s *Server) handleSave(c *gin.Context) {
	start := time.Now()
	if err := s.world.Save(); err != nil {
		s.log.Error("❌ Ошибка сохранения мира: %v", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Мир сохранён",
		Data:    gin.H{"duration_ms": time.Since(start).Milliseconds()},
	})
}

func (s *Server) replayFilter(c *gin.Context) (*replay.ReplayFilter, bool) {
	if s.replay == nil {
		fail(c, http.StatusServiceUnavailable, "Журнал событий отключён")
		return nil, false
	}
	f := &replay.ReplayFilter{
		EventTypes: c.QueryArray("type"),
		Dimension:  c.Query("dimension"),
		Limit:      100,
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "Неверный limit")
			return nil, false
		}
		f.Limit = n
	}
	for name, dst := range map[string]**time.Time{"since": &f.StartTime, "until": &f.EndTime} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Неверный %s: ожидается RFC3339", name))
			return nil, false
		}
		*dst = &ts
	}
	return f, true
}

// handleEvents возвращает последние события мира из журнала
func (s *Server) handleEvents(c *gin.Context) {
	f, ok := s.replayFilter(c)
	if !ok {
		return
	}
	events, err := s.replay.StreamEvents(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "События получены",
		Data:    gin.H{"events": events, "total": len(events)},
	})
}

// handleEventStats возвращает статистику журнала событий
func (s *Server) handleEventStats(c *gin.Context) {
	f, ok := s.replayFilter(c)
	if !ok {
		return
	}
	stats, err := s.replay.GetEventStats(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика событий", Data: stats})
}

// handleEventTypes возвращает типы событий, встречавшиеся в журнале
func (s *Server) handleEventTypes(c *gin.Context) {
	if s.replay == nil {
		fail(c, http.StatusServiceUnavailable, "Журнал событий отключён")
		return
	}
	types, err := s.replay.GetEventTypes(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Типы событий", Data: types})
}

// Start запускает REST сервер и блокируется до остановки
func (s *Server) Start() error {
	s.log.Info("🌐 REST API запущен на %s", s.port)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown плавно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
