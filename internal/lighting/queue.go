// Package lighting пересчитывает небесный свет и свет источников.
//
// Изменения мира не пересчитывают свет сразу: Dimension ставит операции
// в Queue, а Lighter выполняет их порциями из тика сервера.
package lighting

import (
	"sync"

	"github.com/annel0/blockworld/internal/metrics"
	"github.com/annel0/blockworld/internal/vec"
)

// Mode - что произошло со светом
type Mode int

const (
	ModeAdd         Mode = iota // источник появился или стал ярче
	ModeSubtract                // источник исчез или потускнел
	ModeBlockUpdate             // изменилась непрозрачность блока
	ModeInitial                 // новый чанк, света ещё нет
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "Add"
	case ModeSubtract:
		return "Subtract"
	case ModeBlockUpdate:
		return "BlockUpdate"
	case ModeInitial:
		return "Initial"
	default:
		return "Unknown"
	}
}

// Kind - какой канал света затронут
type Kind int

const (
	KindSky Kind = iota
	KindBlock
	KindInitial // оба канала целого чанка
)

func (k Kind) String() string {
	switch k {
	case KindSky:
		return "Sky"
	case KindBlock:
		return "Block"
	case KindInitial:
		return "Initial"
	default:
		return "Unknown"
	}
}

// Operation - одна запись очереди освещения
type Operation struct {
	Seed  vec.GlobalVoxel // для операций над блоком
	Chunk vec.GlobalChunk // для ModeInitial
	Mode  Mode
	Kind  Kind
	Level byte
}

// Queue - FIFO операций освещения, безопасная для нескольких горутин
type Queue struct {
	mu      sync.Mutex
	items   []Operation
	head    int
	metrics *metrics.World
}

// NewQueue создаёт пустую очередь
func NewQueue(m *metrics.World) *Queue {
	return &Queue{metrics: m}
}

// Enqueue добавляет операцию в конец очереди
func (q *Queue) Enqueue(op Operation) {
	q.mu.Lock()
	q.items = append(q.items, op)
	n := len(q.items) - q.head
	q.mu.Unlock()

	q.metrics.SetQueueDepth(n)
}

// EnqueueVoxel ставит операцию над блоком; level обрезается до 15
func (q *Queue) EnqueueVoxel(pos vec.GlobalVoxel, mode Mode, kind Kind, level byte) {
	q.Enqueue(Operation{Seed: pos, Chunk: pos.Chunk(), Mode: mode, Kind: kind, Level: clamp(int(level))})
}

// EnqueueChunk ставит начальное освещение чанка
func (q *Queue) EnqueueChunk(c vec.GlobalChunk) {
	q.Enqueue(Operation{Seed: c.Origin(), Chunk: c, Mode: ModeInitial, Kind: KindInitial, Level: 15})
}

// Dequeue забирает первую операцию
func (q *Queue) Dequeue() (Operation, bool) {
	q.mu.Lock()
	if q.head >= len(q.items) {
		q.mu.Unlock()
		return Operation{}, false
	}
	op := q.items[q.head]
	q.head++

	// Сжимаем срез, когда прочитана большая половина
	if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	n := len(q.items) - q.head
	q.mu.Unlock()

	q.metrics.SetQueueDepth(n)
	return op, true
}

// Len возвращает число ожидающих операций
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 15 {
		return 15
	}
	return byte(v)
}
