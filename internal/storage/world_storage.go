package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/chunk"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zlib"
)

// ErrNotReady возвращается после Close
var ErrNotReady = errors.New("хранилище не готово")

const chunkPrefix = "chunk:"

// SnapshotKey - ключ снимка чанка в архиве
type SnapshotKey struct {
	Dimension int
	Coords    vec.GlobalChunk
}

func (k SnapshotKey) String() string {
	return fmt.Sprintf("%s%d:%d:%d", chunkPrefix, k.Dimension, k.Coords.X, k.Coords.Z)
}

func parseKey(raw string) (SnapshotKey, error) {
	parts := strings.Split(strings.TrimPrefix(raw, chunkPrefix), ":")
	if len(parts) != 3 {
		return SnapshotKey{}, fmt.Errorf("некорректный ключ %q", raw)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return SnapshotKey{}, fmt.Errorf("некорректный ключ %q: %w", raw, err)
		}
		nums[i] = n
	}
	return SnapshotKey{Dimension: nums[0], Coords: vec.GlobalChunk{X: nums[1], Z: nums[2]}}, nil
}

// WorldStorage - архив снимков чанков в BadgerDB. Файлы регионов
// остаются основным хранилищем; архив хранит копии на момент снимка.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
	log     *logging.Logger
}

// NewWorldStorage открывает архив в dataPath/snapshots
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "snapshots")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		log:     logging.GetStorageLogger(),
	}, nil
}

// Path возвращает каталог BadgerDB
func (ws *WorldStorage) Path() string {
	return ws.dbPath
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

// SaveChunk сохраняет снимок чанка измерения dim
func (ws *WorldStorage) SaveChunk(dim int, c *chunk.Chunk) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if err := c.Encode(zw); err != nil {
		return fmt.Errorf("ошибка сериализации чанка %v: %w", c.Coordinates(), err)
	}
	if err := zw.Close(); err != nil {
		return err
	}

	key := SnapshotKey{Dimension: dim, Coords: c.Coordinates()}
	err := ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadChunk читает снимок чанка. nil без ошибки - снимка нет.
func (ws *WorldStorage) LoadChunk(dim int, coords vec.GlobalChunk) (*chunk.Chunk, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	key := SnapshotKey{Dimension: dim, Coords: coords}
	var data []byte

	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("снимок %s: %w", key, err)
	}
	defer zr.Close()

	c, err := chunk.Decode(zr)
	if err != nil {
		return nil, fmt.Errorf("снимок %s: %w", key, err)
	}
	return c, nil
}

// DeleteChunk удаляет снимок; отсутствующий снимок не ошибка
func (ws *WorldStorage) DeleteChunk(dim int, coords vec.GlobalChunk) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	key := SnapshotKey{Dimension: dim, Coords: coords}
	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key.String()))
	})
}

// ListChunks перечисляет ключи снимков измерения dim
func (ws *WorldStorage) ListChunks(dim int) ([]SnapshotKey, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	prefix := []byte(fmt.Sprintf("%s%d:", chunkPrefix, dim))
	var keys []SnapshotKey

	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key, err := parseKey(string(it.Item().Key()))
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// ArchiveDimension сохраняет снимки всех резидентных чанков измерения
func (ws *WorldStorage) ArchiveDimension(d *world.Dimension) (int, error) {
	n := 0
	for _, c := range d.Chunks() {
		if err := ws.SaveChunk(d.ID(), c); err != nil {
			return n, err
		}
		n++
	}
	ws.log.Info("📦 Архивировано чанков измерения %d: %d", d.ID(), n)
	return n, nil
}
