package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Параметры формата MCRegion
const (
	SectorSize     = 4096
	headerSectors  = 2
	chunkSlots     = vec.RegionWidth * vec.RegionDepth
	maxSectorCount = 0xFF
	recordHeader   = 5 // uint32 длина + байт сжатия

	CompressionGzip byte = 1
	CompressionZlib byte = 2
)

var (
	// ErrMalformed - заголовок или запись файла региона повреждены
	ErrMalformed = errors.New("malformed region file")
	// ErrChunkTooLarge - сжатый чанк не помещается в 255 секторов
	ErrChunkTooLarge = errors.New("chunk exceeds region record limit")
)

// ChunkInfo описывает занятую ячейку заголовка
type ChunkInfo struct {
	Local       vec.LocalChunk
	Offset      int // номер первого сектора
	Sectors     int
	Length      int // длина записи (байт сжатия + данные)
	Compression byte
	Timestamp   time.Time
}

// File - открытый файл региона в формате MCRegion
type File struct {
	f          *os.File
	path       string
	writable   bool
	locations  [chunkSlots]uint32
	timestamps [chunkSlots]uint32
	used       []bool // занятость секторов
}

// OpenFile открывает файл региона. При create отсутствующий файл
// создаётся с пустым заголовком.
func OpenFile(path string, writable, create bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
		if create {
			flag |= os.O_CREATE
		}
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}

	rf := &File{f: f, path: path, writable: writable}
	if err := rf.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return rf, nil
}

func (rf *File) readHeader() error {
	info, err := rf.f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	if size == 0 && rf.writable {
		// Новый файл: два пустых сектора заголовка
		if _, err := rf.f.WriteAt(make([]byte, headerSectors*SectorSize), 0); err != nil {
			return fmt.Errorf("write empty header: %w", err)
		}
		size = headerSectors * SectorSize
	}
	if size < headerSectors*SectorSize {
		return fmt.Errorf("%w: %s is %d bytes, shorter than the header", ErrMalformed, rf.path, size)
	}

	header := make([]byte, headerSectors*SectorSize)
	if _, err := rf.f.ReadAt(header, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	r := bytes.NewReader(header)
	if err := binary.Read(r, binary.BigEndian, &rf.locations); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &rf.timestamps); err != nil {
		return err
	}

	sectorCount := int((size + SectorSize - 1) / SectorSize)
	rf.used = make([]bool, sectorCount)
	for i := 0; i < headerSectors; i++ {
		rf.used[i] = true
	}

	for i, loc := range rf.locations {
		if loc == 0 {
			continue
		}
		offset, count := int(loc>>8), int(loc&0xFF)
		if offset < headerSectors || count == 0 || offset+count > sectorCount {
			return fmt.Errorf("%w: %s slot %d points to sectors [%d,%d) outside %d sectors",
				ErrMalformed, rf.path, i, offset, offset+count, sectorCount)
		}
		for s := offset; s < offset+count; s++ {
			rf.used[s] = true
		}
	}
	return nil
}

func slot(l vec.LocalChunk) int {
	if !l.Valid() {
		panic(fmt.Errorf("local chunk %v out of region range", l))
	}
	return l.Index()
}

// HasChunk сообщает, есть ли чанк в заголовке
func (rf *File) HasChunk(l vec.LocalChunk) bool {
	return rf.locations[slot(l)] != 0
}

// ReadChunk возвращает распакованный NBT чанка или nil, если ячейка пуста
func (rf *File) ReadChunk(l vec.LocalChunk) ([]byte, error) {
	loc := rf.locations[slot(l)]
	if loc == 0 {
		return nil, nil
	}
	offset, count := int64(loc>>8), int(loc&0xFF)

	var head [recordHeader]byte
	if _, err := rf.f.ReadAt(head[:], offset*SectorSize); err != nil {
		return nil, fmt.Errorf("%w: chunk %v header: %v", ErrMalformed, l, err)
	}
	length := int(binary.BigEndian.Uint32(head[:4]))
	if length < 1 || length+4 > count*SectorSize {
		return nil, fmt.Errorf("%w: chunk %v length %d does not fit %d sectors", ErrMalformed, l, length, count)
	}

	compressed := make([]byte, length-1)
	if _, err := rf.f.ReadAt(compressed, offset*SectorSize+recordHeader); err != nil {
		return nil, fmt.Errorf("%w: chunk %v payload: %v", ErrMalformed, l, err)
	}

	var zr io.ReadCloser
	var err error
	switch head[4] {
	case CompressionGzip:
		zr, err = gzip.NewReader(bytes.NewReader(compressed))
	case CompressionZlib:
		zr, err = zlib.NewReader(bytes.NewReader(compressed))
	default:
		return nil, fmt.Errorf("%w: chunk %v unknown compression %d", ErrMalformed, l, head[4])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %v: %v", ErrMalformed, l, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %v decompress: %v", ErrMalformed, l, err)
	}
	return data, nil
}

// WriteChunk сжимает NBT чанка zlib и записывает его в файл
func (rf *File) WriteChunk(l vec.LocalChunk, payload []byte) error {
	if !rf.writable {
		return fmt.Errorf("region file %s opened read-only", rf.path)
	}
	idx := slot(l)

	var buf bytes.Buffer
	buf.Write(make([]byte, recordHeader))
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	record := buf.Bytes()
	binary.BigEndian.PutUint32(record[:4], uint32(len(record)-4))
	record[4] = CompressionZlib

	needed := (len(record) + SectorSize - 1) / SectorSize
	if needed > maxSectorCount {
		return fmt.Errorf("%w: chunk %v needs %d sectors", ErrChunkTooLarge, l, needed)
	}

	offset := rf.allocate(idx, needed)

	// Дополняем запись до границы сектора, чтобы размер файла оставался кратным 4096
	padded := make([]byte, needed*SectorSize)
	copy(padded, record)
	if _, err := rf.f.WriteAt(padded, int64(offset)*SectorSize); err != nil {
		return fmt.Errorf("write chunk %v: %w", l, err)
	}

	rf.locations[idx] = uint32(offset)<<8 | uint32(needed)
	rf.timestamps[idx] = uint32(time.Now().Unix())
	return rf.writeHeaderSlot(idx)
}

// allocate выбирает место для записи: старые секторы, если хватает,
// иначе первый подходящий свободный промежуток или конец файла
func (rf *File) allocate(idx, needed int) int {
	loc := rf.locations[idx]
	oldOffset, oldCount := int(loc>>8), int(loc&0xFF)

	if loc != 0 && oldCount >= needed {
		for s := oldOffset + needed; s < oldOffset+oldCount; s++ {
			rf.used[s] = false
		}
		return oldOffset
	}
	if loc != 0 {
		for s := oldOffset; s < oldOffset+oldCount; s++ {
			rf.used[s] = false
		}
	}

	run := 0
	for s := headerSectors; s < len(rf.used); s++ {
		if rf.used[s] {
			run = 0
			continue
		}
		run++
		if run == needed {
			start := s - needed + 1
			rf.mark(start, needed)
			return start
		}
	}

	// Свободный хвост файла тоже используем
	start := len(rf.used) - run
	for len(rf.used) < start+needed {
		rf.used = append(rf.used, false)
	}
	rf.mark(start, needed)
	return start
}

func (rf *File) mark(start, count int) {
	for s := start; s < start+count; s++ {
		rf.used[s] = true
	}
}

func (rf *File) writeHeaderSlot(idx int) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], rf.locations[idx])
	if _, err := rf.f.WriteAt(b[:], int64(idx*4)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b[:], rf.timestamps[idx])
	_, err := rf.f.WriteAt(b[:], int64(SectorSize+idx*4))
	return err
}

// Entries перечисляет все занятые ячейки заголовка
func (rf *File) Entries() ([]ChunkInfo, error) {
	var out []ChunkInfo
	for i, loc := range rf.locations {
		if loc == 0 {
			continue
		}
		info := ChunkInfo{
			Local:     vec.LocalChunk{X: i % vec.RegionWidth, Z: i / vec.RegionWidth},
			Offset:    int(loc >> 8),
			Sectors:   int(loc & 0xFF),
			Timestamp: time.Unix(int64(rf.timestamps[i]), 0),
		}
		var head [recordHeader]byte
		if _, err := rf.f.ReadAt(head[:], int64(info.Offset)*SectorSize); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", ErrMalformed, i, err)
		}
		info.Length = int(binary.BigEndian.Uint32(head[:4]))
		info.Compression = head[4]
		out = append(out, info)
	}
	return out, nil
}

// Path возвращает путь к файлу
func (rf *File) Path() string {
	return rf.path
}

// Sync сбрасывает данные на диск
func (rf *File) Sync() error {
	return rf.f.Sync()
}

// Close закрывает файл
func (rf *File) Close() error {
	return rf.f.Close()
}
