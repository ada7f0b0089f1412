package world

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Tnze/go-mc/nbt"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/klauspost/compress/zlib"
)

// ManifestFile - имя файла описания мира
const ManifestFile = "manifest.nbt"

var (
	// ErrUnknownDimension - у мира нет измерения с таким номером
	ErrUnknownDimension = errors.New("unknown dimension")
	// ErrWorldExists - в каталоге уже есть manifest.nbt
	ErrWorldExists = errors.New("world already exists")
)

// SpawnPoint - точка появления в manifest.nbt
type SpawnPoint struct {
	X int32 `nbt:"X"`
	Y int32 `nbt:"Y"`
	Z int32 `nbt:"Z"`
}

// Voxel переводит точку появления в мировые координаты
func (s SpawnPoint) Voxel() vec.GlobalVoxel {
	return vec.GlobalVoxel{X: int(s.X), Y: int(s.Y), Z: int(s.Z)}
}

// Manifest - корневой compound manifest.nbt
type Manifest struct {
	Name          string     `nbt:"Name"`
	Seed          int64      `nbt:"Seed"`
	SpawnPoint    SpawnPoint `nbt:"SpawnPoint"`
	ChunkProvider string     `nbt:"ChunkProvider"`
}

// ReadManifest читает zlib-сжатый NBT манифеста
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	defer zr.Close()

	var m Manifest
	if _, err := nbt.NewDecoder(zr).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// WriteManifest записывает манифест через временный файл
func WriteManifest(path string, m *Manifest) error {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if err := nbt.NewEncoder(zw).Encode(m, ""); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Options - зависимости мира, общие для всех измерений
type Options struct {
	Blocks          block.Repository
	Metrics         *metrics.World
	DisableLighting bool
	Listeners       []Listener
}

// World - каталог мира: манифест и измерения
type World struct {
	dir  string
	opts Options
	log  *logging.Logger

	mu         sync.Mutex
	manifest   Manifest
	dimensions map[int]*Dimension
}

// Create создаёт новый мир в dir. Каталог может существовать, манифест - нет.
func Create(dir, name string, seed int64, generator string, opts Options) (*World, error) {
	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorldExists, dir)
	}
	if _, err := NewGenerator(generator, seed); err != nil {
		return nil, err
	}
	if generator == "" {
		generator = GeneratorFlatland
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create world dir: %w", err)
	}

	m := Manifest{
		Name:          name,
		Seed:          seed,
		SpawnPoint:    SpawnPoint{X: 0, Y: vec.ChunkHeight / 2, Z: 0},
		ChunkProvider: generator,
	}
	if err := WriteManifest(path, &m); err != nil {
		return nil, err
	}

	w := newWorld(dir, m, opts)
	w.log.Info("🌍 Создан мир %q (сид %d, генератор %s)", name, seed, generator)
	return w, nil
}

// Open открывает существующий мир
func Open(dir string, opts Options) (*World, error) {
	m, err := ReadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	if _, err := NewGenerator(m.ChunkProvider, m.Seed); err != nil {
		return nil, err
	}

	w := newWorld(dir, *m, opts)
	w.log.Info("🌍 Открыт мир %q (сид %d, генератор %s)", m.Name, m.Seed, m.ChunkProvider)
	return w, nil
}

// OpenOrCreate открывает мир или создаёт его, если манифеста нет
func OpenOrCreate(dir, name string, seed int64, generator string, opts Options) (*World, error) {
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); errors.Is(err, os.ErrNotExist) {
		return Create(dir, name, seed, generator, opts)
	}
	return Open(dir, opts)
}

func newWorld(dir string, m Manifest, opts Options) *World {
	return &World{
		dir:        dir,
		opts:       opts,
		log:        logging.GetWorldLogger(),
		manifest:   m,
		dimensions: make(map[int]*Dimension),
	}
}

// Dir возвращает каталог мира
func (w *World) Dir() string {
	return w.dir
}

// Manifest возвращает копию манифеста
func (w *World) Manifest() Manifest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.manifest
}

// SetSpawnPoint меняет точку появления; запишется при Save
func (w *World) SetSpawnPoint(pos vec.GlobalVoxel) {
	w.mu.Lock()
	w.manifest.SpawnPoint = SpawnPoint{X: int32(pos.X), Y: int32(pos.Y), Z: int32(pos.Z)}
	w.mu.Unlock()
}

// DimensionDir возвращает каталог измерения: корень мира для
// основного измерения и DIM{n} для остальных
func DimensionDir(worldDir string, id int) string {
	if id == Overworld {
		return worldDir
	}
	return filepath.Join(worldDir, fmt.Sprintf("DIM%d", id))
}

// Dimension возвращает измерение, создавая его при первом обращении
func (w *World) Dimension(id int) (*Dimension, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if d, ok := w.dimensions[id]; ok {
		return d, nil
	}

	var gen Generator
	switch id {
	case Overworld:
		g, err := NewGenerator(w.manifest.ChunkProvider, w.manifest.Seed)
		if err != nil {
			return nil, err
		}
		gen = g
	case Nether, End:
		gen = EmptyGenerator{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDimension, id)
	}

	d := NewDimension(DimensionOptions{
		ID:              id,
		Dir:             DimensionDir(w.dir, id),
		Generator:       gen,
		Blocks:          w.opts.Blocks,
		Metrics:         w.opts.Metrics,
		DisableLighting: w.opts.DisableLighting,
	})
	for _, l := range w.opts.Listeners {
		d.AddListener(l)
	}
	w.dimensions[id] = d
	return d, nil
}

// Dimensions возвращает открытые измерения, упорядоченные по номеру
func (w *World) Dimensions() []*Dimension {
	w.mu.Lock()
	out := make([]*Dimension, 0, len(w.dimensions))
	for _, d := range w.dimensions {
		out = append(out, d)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Save записывает манифест и все открытые измерения
func (w *World) Save() error {
	m := w.Manifest()
	errs := []error{WriteManifest(filepath.Join(w.dir, ManifestFile), &m)}
	for _, d := range w.Dimensions() {
		errs = append(errs, d.Save())
	}
	return errors.Join(errs...)
}

// Close сохраняет мир и закрывает файлы регионов
func (w *World) Close() error {
	m := w.Manifest()
	errs := []error{WriteManifest(filepath.Join(w.dir, ManifestFile), &m)}
	for _, d := range w.Dimensions() {
		errs = append(errs, d.Close())
	}
	err := errors.Join(errs...)
	if err == nil {
		w.log.Info("💾 Мир %q сохранён и закрыт", m.Name)
	}
	return err
}
