package lighting

import (
	"context"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/chunk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("blockworld/lighting")

// ChunkSource отдаёт чанки, уже находящиеся в памяти.
// Заливка не загружает и не генерирует чанки: на границе с
// незагруженным чанком она останавливается.
type ChunkSource interface {
	LoadedChunk(coords vec.GlobalChunk) *chunk.Chunk
}

// Lighter выполняет операции из очереди освещения
type Lighter struct {
	source  ChunkSource
	blocks  block.Repository
	queue   *Queue
	metrics *metrics.World
	log     *logging.Logger
}

// New создаёт Lighter
func New(source ChunkSource, blocks block.Repository, queue *Queue, m *metrics.World) *Lighter {
	return &Lighter{
		source:  source,
		blocks:  blocks,
		queue:   queue,
		metrics: m,
		log:     logging.GetLightingLogger(),
	}
}

// Queue возвращает очередь, которую обслуживает Lighter
func (l *Lighter) Queue() *Queue {
	return l.queue
}

// TryLightNext выполняет одну операцию. false - очередь пуста.
func (l *Lighter) TryLightNext() bool {
	op, ok := l.queue.Dequeue()
	if !ok {
		return false
	}
	l.Process(op)
	return true
}

// Drain выполняет до budget операций (все, если budget <= 0) и
// возвращает число выполненных. Проверяет ctx между операциями.
func (l *Lighter) Drain(ctx context.Context, budget int) int {
	if l.queue.Len() == 0 {
		return 0
	}

	_, span := tracer.Start(ctx, "lighting.Drain")
	defer span.End()

	done := 0
	for budget <= 0 || done < budget {
		if ctx.Err() != nil {
			break
		}
		if !l.TryLightNext() {
			break
		}
		done++
	}

	span.SetAttributes(
		attribute.Int("processed", done),
		attribute.Int("remaining", l.queue.Len()),
	)
	return done
}

// Process выполняет операцию немедленно, минуя очередь
func (l *Lighter) Process(op Operation) {
	defer l.metrics.LightingOperation(op.Mode.String(), op.Kind.String())

	v := newView(l.source)

	switch op.Mode {
	case ModeInitial:
		l.initial(v, op)
	case ModeAdd:
		l.add(v, op)
	case ModeSubtract:
		if op.Kind == KindSky {
			l.rescanColumn(v, op.Seed)
			return
		}
		l.subtract(v, op.Kind, op.Seed, op.Level)
	case ModeBlockUpdate:
		if op.Kind == KindSky {
			l.rescanColumn(v, op.Seed)
			return
		}
		// Повторно выводим свет с учётом новой непрозрачности:
		// снимаем всё, что зависело от точки, и заливаем заново от уцелевших источников.
		id, ok := v.blockID(op.Seed)
		if !ok {
			return
		}
		l.subtract(v, KindBlock, op.Seed, block.Luminance(l.blocks, block.ID(id)))
	default:
		l.log.Warn("Неизвестный режим освещения %v", op.Mode)
	}
}

func (l *Lighter) opacity(id byte) byte {
	return block.Opacity(l.blocks, block.ID(id))
}

func (l *Lighter) luminance(id byte) byte {
	return block.Luminance(l.blocks, block.ID(id))
}

// cost - ослабление при переходе в блок с непрозрачностью opacity.
// Небесный свет полной силы спускается вниз без потерь через прозрачные блоки.
func cost(kind Kind, dir vec.Vec3, level byte, opacity byte) int {
	if kind == KindSky && dir == vec.Down && level == chunk.MaxLight {
		return int(opacity)
	}
	return max(1, int(opacity))
}

// initial - начальное освещение свежего чанка
func (l *Lighter) initial(v *view, op Operation) {
	c := v.chunk(op.Chunk)
	if c == nil {
		return
	}

	c.RecalculateHeightMap()

	if op.Kind == KindInitial || op.Kind == KindSky {
		for x := 0; x < vec.ChunkWidth; x++ {
			for z := 0; z < vec.ChunkDepth; z++ {
				l.scanColumn(c, vec.LocalColumn{X: x, Z: z})
			}
		}
	}

	if op.Kind == KindInitial || op.Kind == KindBlock {
		l.initialBlockLight(v, c)
	}
}

// scanColumn проходит столбец сверху вниз, вычитая непрозрачность каждого блока
func (l *Lighter) scanColumn(c *chunk.Chunk, col vec.LocalColumn) {
	sky := byte(chunk.MaxLight)
	for y := vec.ChunkHeight - 1; y >= 0; y-- {
		local := col.Voxel(y)
		if sky > 0 {
			op := l.opacity(c.GetBlockID(local))
			if sky >= op {
				sky -= op
			} else {
				sky = 0
			}
		}
		c.SetSkyLight(local, sky)
	}
}

// rescanColumn пересчитывает небесный свет столбца, содержащего pos
func (l *Lighter) rescanColumn(v *view, pos vec.GlobalVoxel) {
	c := v.chunk(pos.Chunk())
	if c == nil {
		return
	}
	col := pos.Local().Column()
	c.RecalculateHeight(col)
	l.scanColumn(c, col)
}

// initialBlockLight заливает свет от источников чанка и подтягивает
// свет, пришедший через границу из загруженных соседей
func (l *Lighter) initialBlockLight(v *view, c *chunk.Chunk) {
	c.FillBlockLight(0)
	coords := c.Coordinates()

	var seeds []vec.GlobalVoxel
	for x := 0; x < vec.ChunkWidth; x++ {
		for z := 0; z < vec.ChunkDepth; z++ {
			for y := 0; y < vec.ChunkHeight; y++ {
				local := vec.LocalVoxel{X: x, Y: y, Z: z}
				if lum := l.luminance(c.GetBlockID(local)); lum > 0 {
					c.SetBlockLight(local, lum)
					seeds = append(seeds, coords.Voxel(local))
				}
			}
		}
	}

	borders := []struct {
		dx, dz int
		edge   func(i int) vec.LocalColumn
	}{
		{-1, 0, func(i int) vec.LocalColumn { return vec.LocalColumn{X: vec.ChunkWidth - 1, Z: i} }},
		{1, 0, func(i int) vec.LocalColumn { return vec.LocalColumn{X: 0, Z: i} }},
		{0, -1, func(i int) vec.LocalColumn { return vec.LocalColumn{X: i, Z: vec.ChunkDepth - 1} }},
		{0, 1, func(i int) vec.LocalColumn { return vec.LocalColumn{X: i, Z: 0} }},
	}
	for _, b := range borders {
		nc := coords.Offset(b.dx, b.dz)
		neighbor := v.chunk(nc)
		if neighbor == nil {
			continue
		}
		for i := 0; i < vec.ChunkWidth; i++ {
			col := b.edge(i)
			for y := 0; y < vec.ChunkHeight; y++ {
				local := col.Voxel(y)
				if neighbor.GetBlockLight(local) > 1 {
					seeds = append(seeds, nc.Voxel(local))
				}
			}
		}
	}

	l.flood(v, KindBlock, seeds)
}

// add поднимает свет в точке до op.Level и заливает окрестность.
// Небесный свет дополнительно поднимается вверх до границы мира.
func (l *Lighter) add(v *view, op Operation) {
	kind := op.Kind
	if kind == KindInitial {
		kind = KindBlock
	}

	var seeds []vec.GlobalVoxel
	raise := func(p vec.GlobalVoxel) {
		cur, ok := v.light(kind, p)
		if !ok {
			return
		}
		if op.Level > cur {
			v.setLight(kind, p, op.Level)
		}
		seeds = append(seeds, p)
	}

	raise(op.Seed)
	if kind == KindSky {
		for y := op.Seed.Y + 1; y < vec.ChunkHeight; y++ {
			raise(vec.GlobalVoxel{X: op.Seed.X, Y: y, Z: op.Seed.Z})
		}
	}

	l.flood(v, kind, seeds)
}

// flood - итеративная заливка в ширину от seeds.
// Сосед получает max(текущий, уровень - max(1, непрозрачность)).
func (l *Lighter) flood(v *view, kind Kind, seeds []vec.GlobalVoxel) {
	queue := seeds
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		level, ok := v.light(kind, p)
		if !ok || level <= 1 {
			continue
		}

		for _, dir := range vec.FaceOffsets {
			n := p.Offset(dir)
			id, ok := v.blockID(n)
			if !ok {
				continue
			}
			candidate := int(level) - cost(kind, dir, level, l.opacity(id))
			if candidate <= 0 {
				continue
			}
			cur, _ := v.light(kind, n)
			if candidate > int(cur) {
				v.setLight(kind, n, clamp(candidate))
				queue = append(queue, n)
			}
		}
	}
}

type removal struct {
	pos   vec.GlobalVoxel
	level byte
}

// subtract снимает свет, который мог прийти из seed, и заливает
// заново от оставшихся источников. newLevel - собственный свет seed после изменения.
func (l *Lighter) subtract(v *view, kind Kind, seed vec.GlobalVoxel, newLevel byte) {
	old, ok := v.light(kind, seed)
	if !ok {
		return
	}

	v.setLight(kind, seed, newLevel)

	var relight []vec.GlobalVoxel
	if newLevel > 0 {
		relight = append(relight, seed)
	}

	pending := []removal{{pos: seed, level: old}}
	for len(pending) > 0 {
		r := pending[0]
		pending = pending[1:]

		for _, dir := range vec.FaceOffsets {
			n := r.pos.Offset(dir)
			id, ok := v.blockID(n)
			if !ok {
				continue
			}
			nl, _ := v.light(kind, n)
			if nl == 0 {
				continue
			}

			reachable := int(r.level) - cost(kind, dir, r.level, l.opacity(id))
			emission := l.emission(kind, id)

			if int(nl) > reachable || emission >= nl {
				// Свет соседа не выводится из снятого: он станет новой опорой
				relight = append(relight, n)
				continue
			}

			v.setLight(kind, n, emission)
			if emission > 0 {
				relight = append(relight, n)
			}
			pending = append(pending, removal{pos: n, level: nl})
		}
	}

	l.flood(v, kind, relight)
}

func (l *Lighter) emission(kind Kind, id byte) byte {
	if kind == KindBlock {
		return l.luminance(id)
	}
	return 0
}

// view кэширует чанки на время одной операции
type view struct {
	source ChunkSource
	cache  map[vec.GlobalChunk]*chunk.Chunk
}

func newView(source ChunkSource) *view {
	return &view{source: source, cache: make(map[vec.GlobalChunk]*chunk.Chunk)}
}

func (v *view) chunk(c vec.GlobalChunk) *chunk.Chunk {
	if ch, ok := v.cache[c]; ok {
		return ch
	}
	ch := v.source.LoadedChunk(c)
	v.cache[c] = ch
	return ch
}

func (v *view) at(p vec.GlobalVoxel) (*chunk.Chunk, vec.LocalVoxel, bool) {
	if !p.InHeightRange() {
		return nil, vec.LocalVoxel{}, false
	}
	c := v.chunk(p.Chunk())
	if c == nil {
		return nil, vec.LocalVoxel{}, false
	}
	return c, p.Local(), true
}

func (v *view) blockID(p vec.GlobalVoxel) (byte, bool) {
	c, local, ok := v.at(p)
	if !ok {
		return 0, false
	}
	return c.GetBlockID(local), true
}

func (v *view) light(kind Kind, p vec.GlobalVoxel) (byte, bool) {
	c, local, ok := v.at(p)
	if !ok {
		return 0, false
	}
	if kind == KindSky {
		return c.GetSkyLight(local), true
	}
	return c.GetBlockLight(local), true
}

func (v *view) setLight(kind Kind, p vec.GlobalVoxel, level byte) {
	c, local, ok := v.at(p)
	if !ok {
		return
	}
	if kind == KindSky {
		c.SetSkyLight(local, clamp(int(level)))
	} else {
		c.SetBlockLight(local, clamp(int(level)))
	}
}
