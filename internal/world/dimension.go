package world

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockworld/internal/lighting"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/chunk"
	"github.com/annel0/blockworld/internal/world/region"
)

// LoadEffort определяет, сколько работы GetChunk готов сделать
type LoadEffort int

const (
	InMemory LoadEffort = iota // только резидентные чанки
	Load                       // плюс чтение с диска
	Generate                   // плюс генерация отсутствующих
)

func (e LoadEffort) String() string {
	switch e {
	case InMemory:
		return "InMemory"
	case Load:
		return "Load"
	case Generate:
		return "Generate"
	default:
		return "Unknown"
	}
}

// Идентификаторы измерений
const (
	Overworld = 0
	Nether    = -1
	End       = 1
)

// DimensionOptions - параметры измерения
type DimensionOptions struct {
	ID        int
	Dir       string // каталог измерения; регионы лежат в Dir/region
	Generator Generator
	Blocks    block.Repository
	Metrics   *metrics.World

	// DisableLighting отключает очередь освещения:
	// новые чанки получают свет 15, изменения блоков свет не трогают.
	DisableLighting bool
}

// Stats - счётчики резидентных данных измерения
type Stats struct {
	Regions             int `json:"regions"`
	Chunks              int `json:"chunks"`
	PendingBlockUpdates int `json:"pending_block_updates"`
	LightingQueue       int `json:"lighting_queue"`
}

// blockUpdate - сосед source, которому нужно отреагировать на изменение
type blockUpdate struct {
	pos    vec.GlobalVoxel
	source block.Descriptor
}

// Dimension - адресуемый мир: разреженная карта регионов,
// политика загрузки чанков и постановка работы для освещения.
//
// Карта регионов защищена одной блокировкой. Изменения одного чанка из
// нескольких горутин не сериализуются: их должен упорядочивать вызывающий.
// Чанки не выгружаются из памяти.
type Dimension struct {
	id        int
	regionDir string
	generator Generator
	blocks    block.Repository
	metrics   *metrics.World
	log       *logging.Logger

	regionsMu sync.RWMutex
	regions   map[vec.Region]*region.Region

	queue   *lighting.Queue
	lighter *lighting.Lighter
	noLight atomic.Bool

	updatesMu sync.Mutex
	updates   []blockUpdate

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewDimension создаёт измерение без резидентных регионов
func NewDimension(opts DimensionOptions) *Dimension {
	gen := opts.Generator
	if gen == nil {
		gen = EmptyGenerator{}
	}

	d := &Dimension{
		id:        opts.ID,
		regionDir: filepath.Join(opts.Dir, "region"),
		generator: gen,
		blocks:    opts.Blocks,
		metrics:   opts.Metrics,
		log:       logging.GetWorldLogger(),
		regions:   make(map[vec.Region]*region.Region),
		queue:     lighting.NewQueue(opts.Metrics),
	}
	d.lighter = lighting.New(d, opts.Blocks, d.queue, opts.Metrics)
	d.noLight.Store(opts.DisableLighting)
	return d
}

// ID возвращает номер измерения
func (d *Dimension) ID() int {
	return d.id
}

// RegionDir возвращает каталог файлов регионов
func (d *Dimension) RegionDir() string {
	return d.regionDir
}

// Generator возвращает генератор чанков
func (d *Dimension) Generator() Generator {
	return d.generator
}

// Blocks возвращает репозиторий блоков
func (d *Dimension) Blocks() block.Repository {
	return d.blocks
}

// LightingQueue возвращает очередь освещения измерения
func (d *Dimension) LightingQueue() *lighting.Queue {
	return d.queue
}

// Lighter возвращает обработчик очереди освещения
func (d *Dimension) Lighter() *lighting.Lighter {
	return d.lighter
}

// LightingEnabled сообщает, ведётся ли освещение
func (d *Dimension) LightingEnabled() bool {
	return !d.noLight.Load()
}

// SetLightingEnabled включает или выключает освещение
func (d *Dimension) SetLightingEnabled(enabled bool) {
	d.noLight.Store(!enabled)
}

// AddListener подписывает слушателя на события измерения
func (d *Dimension) AddListener(l Listener) {
	d.listenersMu.Lock()
	d.listeners = append(d.listeners, l)
	d.listenersMu.Unlock()
}

func (d *Dimension) notify(ev Event) {
	d.listenersMu.RLock()
	listeners := d.listeners
	d.listenersMu.RUnlock()

	for _, l := range listeners {
		l.OnWorldEvent(ev)
	}
}

// residentRegion возвращает регион из карты или nil
func (d *Dimension) residentRegion(coords vec.Region) *region.Region {
	d.regionsMu.RLock()
	defer d.regionsMu.RUnlock()
	return d.regions[coords]
}

// ensureRegion делает регион резидентным
func (d *Dimension) ensureRegion(coords vec.Region) *region.Region {
	d.regionsMu.Lock()
	defer d.regionsMu.Unlock()

	if r, ok := d.regions[coords]; ok {
		return r
	}
	r := region.New(coords, d.regionDir, d.metrics)
	d.regions[coords] = r
	d.updateResidentLocked()
	return r
}

func (d *Dimension) updateResidentLocked() {
	if d.metrics == nil {
		return
	}
	chunks := 0
	for _, r := range d.regions {
		chunks += r.ChunkCount()
	}
	d.metrics.SetResident(len(d.regions), chunks)
}

// GetChunk возвращает чанк с учётом effort. nil без ошибки означает,
// что чанка нет и effort не позволяет его получить.
func (d *Dimension) GetChunk(coords vec.GlobalChunk, effort LoadEffort) (*chunk.Chunk, error) {
	rc := coords.Region()
	local := coords.Local()

	r := d.residentRegion(rc)
	if r != nil {
		if c := r.GetChunk(local); c != nil {
			return c, nil
		}
	}
	if effort == InMemory {
		return nil, nil
	}

	if r == nil {
		if effort == Load && !region.Exists(d.regionDir, rc) {
			return nil, nil
		}
		r = d.ensureRegion(rc)
	}

	c, fromDisk, err := r.LoadChunk(local)
	if err != nil {
		d.log.Error("❌ Не удалось загрузить чанк %v: %v", coords, err)
		return nil, err
	}
	if c != nil {
		// Резидентный чанк уже прошёл chunkArrived в другой горутине
		if fromDisk {
			d.chunkArrived(c, EventTypeChunkLoaded)
		}
		return c, nil
	}
	if effort == Load {
		return nil, nil
	}

	c = d.generator.Generate(coords)
	if err := r.AddChunk(c); err != nil {
		if errors.Is(err, region.ErrChunkExists) {
			// Чанк успела создать другая горутина
			return r.GetChunk(local), nil
		}
		return nil, err
	}
	d.chunkArrived(c, EventTypeChunkGenerated)
	return c, nil
}

// chunkArrived ставит начальное освещение и рассылает событие
func (d *Dimension) chunkArrived(c *chunk.Chunk, kind EventType) {
	coords := c.Coordinates()

	if kind == EventTypeChunkGenerated {
		d.metrics.ChunkGenerated()
		d.log.Trace("🌱 Сгенерирован чанк %v", coords)
	} else {
		d.metrics.ChunkLoaded()
		d.log.Trace("📂 Загружен чанк %v", coords)
	}

	if d.LightingEnabled() {
		d.queue.EnqueueChunk(coords)
	} else if kind == EventTypeChunkGenerated {
		c.FillSkyLight(chunk.MaxLight)
		c.FillBlockLight(chunk.MaxLight)
	}

	d.regionsMu.RLock()
	d.updateResidentLocked()
	d.regionsMu.RUnlock()

	d.notify(ChunkEvent{EventType: kind, Dimension: d.id, Coords: coords})
}

// LoadedChunk возвращает резидентный чанк или nil
func (d *Dimension) LoadedChunk(coords vec.GlobalChunk) *chunk.Chunk {
	r := d.residentRegion(coords.Region())
	if r == nil {
		return nil
	}
	return r.GetChunk(coords.Local())
}

// IsChunkLoaded сообщает, резидентен ли чанк
func (d *Dimension) IsChunkLoaded(coords vec.GlobalChunk) bool {
	return d.LoadedChunk(coords) != nil
}

// FindBlockPosition находит резидентный чанк, содержащий pos.
// Никогда не загружает и не генерирует.
func (d *Dimension) FindBlockPosition(pos vec.GlobalVoxel) (*chunk.Chunk, vec.LocalVoxel, bool) {
	if !pos.InHeightRange() {
		return nil, vec.LocalVoxel{}, false
	}
	c := d.LoadedChunk(pos.Chunk())
	if c == nil {
		return nil, vec.LocalVoxel{}, false
	}
	return c, pos.Local(), true
}

// IsValidPosition сообщает, что pos внутри высоты мира и её чанк загружен
func (d *Dimension) IsValidPosition(pos vec.GlobalVoxel) bool {
	_, _, ok := d.FindBlockPosition(pos)
	return ok
}

// GetBlockID возвращает ID блока; 0 для незагруженных чанков
func (d *Dimension) GetBlockID(pos vec.GlobalVoxel) byte {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return 0
	}
	return c.GetBlockID(l)
}

// GetMetadata возвращает метаданные блока
func (d *Dimension) GetMetadata(pos vec.GlobalVoxel) byte {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return 0
	}
	return c.GetMetadata(l)
}

// GetSkyLight возвращает небесный свет
func (d *Dimension) GetSkyLight(pos vec.GlobalVoxel) byte {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return 0
	}
	return c.GetSkyLight(l)
}

// GetBlockLight возвращает свет источников
func (d *Dimension) GetBlockLight(pos vec.GlobalVoxel) byte {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return 0
	}
	return c.GetBlockLight(l)
}

// GetBlockData возвращает снимок блока
func (d *Dimension) GetBlockData(pos vec.GlobalVoxel) block.Descriptor {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return block.Descriptor{Coordinates: pos}
	}
	return describe(c, l, pos)
}

func describe(c *chunk.Chunk, l vec.LocalVoxel, pos vec.GlobalVoxel) block.Descriptor {
	return block.Descriptor{
		ID:          block.ID(c.GetBlockID(l)),
		Metadata:    c.GetMetadata(l),
		SkyLight:    c.GetSkyLight(l),
		BlockLight:  c.GetBlockLight(l),
		Coordinates: pos,
	}
}

// GetTileEntity возвращает tile entity блока или nil
func (d *Dimension) GetTileEntity(pos vec.GlobalVoxel) chunk.TileEntity {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return nil
	}
	return c.GetTileEntity(l)
}

// SetTileEntity заменяет tile entity блока; nil удаляет
func (d *Dimension) SetTileEntity(pos vec.GlobalVoxel, te chunk.TileEntity) {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return
	}
	c.SetTileEntity(l, te)
}

// SetSkyLight записывает небесный свет без пересчёта соседей
func (d *Dimension) SetSkyLight(pos vec.GlobalVoxel, v byte) {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return
	}
	c.SetSkyLight(l, v)
}

// SetBlockLight записывает свет источников без пересчёта соседей
func (d *Dimension) SetBlockLight(pos vec.GlobalVoxel, v byte) {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return
	}
	c.SetBlockLight(l, v)
}

// SetBlockID меняет ID блока, сохраняя метаданные
func (d *Dimension) SetBlockID(pos vec.GlobalVoxel, id byte) {
	d.changeBlock(pos, func(c *chunk.Chunk, l vec.LocalVoxel) {
		c.SetBlockID(l, id)
	})
}

// SetMetadata меняет метаданные блока
func (d *Dimension) SetMetadata(pos vec.GlobalVoxel, meta byte) {
	d.changeBlock(pos, func(c *chunk.Chunk, l vec.LocalVoxel) {
		c.SetMetadata(l, meta)
	})
}

// SetBlockData меняет ID и метаданные блока. Свет из desc игнорируется.
func (d *Dimension) SetBlockData(pos vec.GlobalVoxel, desc block.Descriptor) {
	d.changeBlock(pos, func(c *chunk.Chunk, l vec.LocalVoxel) {
		c.SetBlockID(l, byte(desc.ID))
		c.SetMetadata(l, desc.Metadata)
	})
}

// changeBlock применяет mutate и, если блок изменился, обновляет карту
// высот, рассылает событие, ставит работу освещению и соседям
func (d *Dimension) changeBlock(pos vec.GlobalVoxel, mutate func(c *chunk.Chunk, l vec.LocalVoxel)) {
	c, l, ok := d.FindBlockPosition(pos)
	if !ok {
		return
	}

	old := describe(c, l, pos)
	mutate(c, l)
	updated := describe(c, l, pos)
	if old.Same(updated) {
		return
	}

	c.RecalculateHeight(l.Column())
	d.metrics.BlockChanged()
	d.notify(BlockChangedEvent{Dimension: d.id, Old: old, New: updated})

	if d.LightingEnabled() {
		d.enqueueLighting(pos, old.ID, updated.ID)
	}
	d.scheduleNeighbors(updated)
}

// enqueueLighting ставит операции освещения по разнице свойств блоков
func (d *Dimension) enqueueLighting(pos vec.GlobalVoxel, oldID, newID block.ID) {
	oldLum, newLum := block.Luminance(d.blocks, oldID), block.Luminance(d.blocks, newID)
	oldOp, newOp := block.Opacity(d.blocks, oldID), block.Opacity(d.blocks, newID)

	switch {
	case newLum > oldLum:
		d.queue.EnqueueVoxel(pos, lighting.ModeAdd, lighting.KindBlock, newLum)
	case newLum < oldLum:
		d.queue.EnqueueVoxel(pos, lighting.ModeSubtract, lighting.KindBlock, newLum)
	case newOp != oldOp:
		d.queue.EnqueueVoxel(pos, lighting.ModeBlockUpdate, lighting.KindBlock, newLum)
	}

	if newOp != oldOp {
		d.queue.EnqueueVoxel(pos, lighting.ModeBlockUpdate, lighting.KindSky, 0)
	}
}

// scheduleNeighbors ставит шесть соседей в очередь обновлений
func (d *Dimension) scheduleNeighbors(source block.Descriptor) {
	d.updatesMu.Lock()
	for _, n := range source.Coordinates.Neighbors() {
		d.updates = append(d.updates, blockUpdate{pos: n, source: source})
	}
	pending := len(d.updates)
	d.updatesMu.Unlock()

	d.metrics.SetPendingBlockUpdates(pending)
}

// PendingBlockUpdates возвращает длину очереди обновлений соседей
func (d *Dimension) PendingBlockUpdates() int {
	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()
	return len(d.updates)
}

// ProcessBlockUpdates вызывает провайдеры соседей изменённых блоков и
// возвращает число обработанных записей. При limit <= 0 обрабатывается
// столько записей, сколько было в очереди на момент вызова; записи,
// добавленные провайдерами, ждут следующего вызова.
func (d *Dimension) ProcessBlockUpdates(limit int) int {
	d.updatesMu.Lock()
	n := len(d.updates)
	if limit > 0 && limit < n {
		n = limit
	}
	batch := make([]blockUpdate, n)
	copy(batch, d.updates[:n])
	d.updates = append(d.updates[:0], d.updates[n:]...)
	d.updatesMu.Unlock()

	for _, u := range batch {
		c, l, ok := d.FindBlockPosition(u.pos)
		if !ok {
			continue
		}
		desc := describe(c, l, u.pos)
		if d.blocks == nil {
			continue
		}
		p := d.blocks.Provider(desc.ID)
		if p == nil {
			continue
		}
		p.BlockUpdate(desc, u.source, d)
	}

	d.metrics.SetPendingBlockUpdates(d.PendingBlockUpdates())
	return n
}

// Initialize генерирует квадрат чанков радиуса radius вокруг spawn.
// progress вызывается после каждого чанка и может быть nil.
func (d *Dimension) Initialize(ctx context.Context, spawn vec.GlobalVoxel, radius int, progress func(done, total int)) error {
	center := spawn.Chunk()
	side := 2*radius + 1
	total := side * side
	done := 0

	d.log.Info("🗺️ Подготовка области спавна %v: %d чанков", center, total)
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := d.GetChunk(center.Offset(dx, dz), Generate); err != nil {
				return fmt.Errorf("чанк %v: %w", center.Offset(dx, dz), err)
			}
			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return nil
}

// Regions возвращает резидентные регионы, упорядоченные по координатам
func (d *Dimension) Regions() []*region.Region {
	d.regionsMu.RLock()
	out := make([]*region.Region, 0, len(d.regions))
	for _, r := range d.regions {
		out = append(out, r)
	}
	d.regionsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Coordinates(), out[j].Coordinates()
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out
}

// Chunks возвращает все резидентные чанки
func (d *Dimension) Chunks() []*chunk.Chunk {
	var out []*chunk.Chunk
	for _, r := range d.Regions() {
		out = append(out, r.Chunks()...)
	}
	return out
}

// Stats возвращает счётчики измерения
func (d *Dimension) Stats() Stats {
	regions := d.Regions()
	s := Stats{
		Regions:             len(regions),
		PendingBlockUpdates: d.PendingBlockUpdates(),
		LightingQueue:       d.queue.Len(),
	}
	for _, r := range regions {
		s.Chunks += r.ChunkCount()
	}
	return s
}

// Save записывает изменённые чанки всех регионов
func (d *Dimension) Save() error {
	var errs []error
	for _, r := range d.Regions() {
		if err := r.Save(); err != nil {
			d.log.Error("❌ Ошибка сохранения региона %v: %v", r.Coordinates(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close сохраняет и закрывает файлы регионов
func (d *Dimension) Close() error {
	errs := []error{d.Save()}
	for _, r := range d.Regions() {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
