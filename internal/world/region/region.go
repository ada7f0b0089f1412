// Package region хранит чанки одного файла MCRegion (32x32 чанка).
package region

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/chunk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrChunkExists возвращается AddChunk, если ячейка уже занята
var ErrChunkExists = errors.New("chunk already present in region")

var tracer = otel.Tracer("blockworld/region")

// Region - кэш чанков одного файла региона
type Region struct {
	coords  vec.Region
	dir     string
	metrics *metrics.World
	log     *logging.Logger

	mu     sync.Mutex // защищает chunks и file
	chunks map[vec.LocalChunk]*chunk.Chunk
	file   *File
}

// New создаёт регион. Файл не открывается, пока не понадобится.
func New(coords vec.Region, dir string, m *metrics.World) *Region {
	return &Region{
		coords:  coords,
		dir:     dir,
		metrics: m,
		log:     logging.GetRegionLogger(),
		chunks:  make(map[vec.LocalChunk]*chunk.Chunk),
	}
}

// FileName возвращает путь к файлу региона в каталоге dir
func FileName(dir string, coords vec.Region) string {
	return filepath.Join(dir, coords.FileName())
}

// Exists проверяет наличие файла региона на диске
func Exists(dir string, coords vec.Region) bool {
	_, err := os.Stat(FileName(dir, coords))
	return err == nil
}

// Coordinates возвращает координаты региона
func (r *Region) Coordinates() vec.Region {
	return r.coords
}

// Path возвращает путь к файлу региона
func (r *Region) Path() string {
	return FileName(r.dir, r.coords)
}

// GetChunk возвращает чанк из памяти или nil. Диск и генератор не трогает.
func (r *Region) GetChunk(l vec.LocalChunk) *chunk.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks[l]
}

// IsChunkLoaded сообщает, находится ли чанк в памяти
func (r *Region) IsChunkLoaded(l vec.LocalChunk) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.chunks[l]
	return ok
}

// LoadChunk читает чанк из файла региона. Возвращает nil без ошибки,
// если файла нет или чанк в нём отсутствует. Уже загруженный чанк
// возвращается как есть с fromDisk == false.
func (r *Region) LoadChunk(l vec.LocalChunk) (c *chunk.Chunk, fromDisk bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.chunks[l]; ok {
		return c, false, nil
	}

	_, span := tracer.Start(context.Background(), "region.LoadChunk")
	defer span.End()
	span.SetAttributes(
		attribute.String("region", r.coords.String()),
		attribute.String("chunk", l.String()),
	)

	start := time.Now()
	defer func() { r.metrics.ObserveRegionIO("load", time.Since(start)) }()

	if r.file == nil {
		if !Exists(r.dir, r.coords) {
			return nil, false, nil
		}
		f, err := OpenFile(r.Path(), true, false)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "open")
			return nil, false, fmt.Errorf("open region %v: %w", r.coords, err)
		}
		r.file = f
	}

	data, err := r.file.ReadChunk(l)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read")
		return nil, false, fmt.Errorf("region %v: %w", r.coords, err)
	}
	if data == nil {
		return nil, false, nil
	}

	c, err = chunk.Decode(bytes.NewReader(data))
	if err != nil {
		r.log.Debug("Повреждённый чанк %v в %s:\n%s", l, r.Path(), logging.HexDump(data))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, false, fmt.Errorf("region %v chunk %v: %w", r.coords, l, err)
	}

	expected := r.coords.Chunk(l)
	if c.Coordinates() != expected {
		err = fmt.Errorf("%w: slot %v holds chunk %v, want %v", ErrMalformed, l, c.Coordinates(), expected)
		span.RecordError(err)
		return nil, false, err
	}

	r.chunks[l] = c
	return c, true, nil
}

// AddChunk добавляет новый (сгенерированный) чанк. Существующий не перезаписывается.
func (r *Region) AddChunk(c *chunk.Chunk) error {
	coords := c.Coordinates()
	if coords.Region() != r.coords {
		return fmt.Errorf("chunk %v does not belong to region %v", coords, r.coords)
	}
	l := coords.Local()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chunks[l]; ok {
		return fmt.Errorf("%w: %v", ErrChunkExists, coords)
	}
	r.chunks[l] = c
	return nil
}

// Chunks возвращает все чанки в памяти, упорядоченные по ячейке
func (r *Region) Chunks() []*chunk.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*chunk.Chunk, 0, len(r.chunks))
	for _, c := range r.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Coordinates().Local().Index() < out[j].Coordinates().Local().Index()
	})
	return out
}

// ChunkCount возвращает число чанков в памяти
func (r *Region) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Save записывает все изменённые чанки в файл региона
func (r *Region) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dirty []*chunk.Chunk
	for _, c := range r.chunks {
		if c.IsDirty() {
			dirty = append(dirty, c)
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	_, span := tracer.Start(context.Background(), "region.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("region", r.coords.String()),
		attribute.Int("chunks", len(dirty)),
	)

	start := time.Now()
	defer func() { r.metrics.ObserveRegionIO("save", time.Since(start)) }()

	if r.file == nil {
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return fmt.Errorf("create region dir: %w", err)
		}
		f, err := OpenFile(r.Path(), true, true)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("open region %v: %w", r.coords, err)
		}
		r.file = f
	}

	stamp := time.Now().UnixMilli()
	var buf bytes.Buffer
	for _, c := range dirty {
		buf.Reset()
		seen, err := c.EncodeAt(&buf, stamp)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if err := r.file.WriteChunk(c.Coordinates().Local(), buf.Bytes()); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write")
			return fmt.Errorf("region %v: %w", r.coords, err)
		}
		c.MarkClean(seen, stamp)
	}

	if err := r.file.Sync(); err != nil {
		return err
	}
	r.log.Debug("💾 Регион %v: сохранено чанков %d", r.coords, len(dirty))
	return nil
}

// Close закрывает файл региона, не сохраняя чанки
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
