// Package nibble хранит 4-битные значения по два в байте.
//
// Упаковка совпадает с форматом MCRegion: значение с чётным индексом
// лежит в младшем полубайте, с нечётным - в старшем.
package nibble

import "fmt"

// IndexError возникает при обращении за пределы массива
type IndexError struct {
	Index  int
	Length int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("nibble index %d out of range [0,%d)", e.Index, e.Length)
}

// Array - окно над байтовым буфером длиной length полубайтов
type Array struct {
	data   []byte
	offset int
	length int
}

// New создаёт массив из length полубайтов, заполненный нулями
func New(length int) *Array {
	checkEven(length)
	return &Array{data: make([]byte, length/2), length: length}
}

// Wrap создаёт массив поверх существующего буфера без копирования.
// length задаётся в полубайтах и должен быть чётным.
func Wrap(data []byte, offset, length int) *Array {
	checkEven(length)
	if offset < 0 || offset+length/2 > len(data) {
		panic(fmt.Errorf("nibble window [%d,%d) exceeds buffer of %d bytes", offset, offset+length/2, len(data)))
	}
	return &Array{data: data, offset: offset, length: length}
}

func checkEven(length int) {
	if length < 0 || length%2 != 0 {
		panic(fmt.Errorf("nibble length must be even and non-negative, got %d", length))
	}
}

// Len возвращает количество полубайтов
func (a *Array) Len() int {
	return a.length
}

// Get читает значение по индексу
func (a *Array) Get(i int) byte {
	a.check(i)
	b := a.data[a.offset+i/2]
	if i%2 == 0 {
		return b & 0x0F
	}
	return b >> 4
}

// Set записывает значение по индексу; старшие биты v отбрасываются
func (a *Array) Set(i int, v byte) {
	a.check(i)
	v &= 0x0F
	p := a.offset + i/2
	if i%2 == 0 {
		a.data[p] = (a.data[p] & 0xF0) | v
	} else {
		a.data[p] = (a.data[p] & 0x0F) | v<<4
	}
}

// Fill записывает v во все ячейки
func (a *Array) Fill(v byte) {
	v &= 0x0F
	packed := v | v<<4
	for i := a.offset; i < a.offset+a.length/2; i++ {
		a.data[i] = packed
	}
}

func (a *Array) check(i int) {
	if i < 0 || i >= a.length {
		panic(&IndexError{Index: i, Length: a.length})
	}
}

// Serialize возвращает копию упакованных байтов (Len()/2 штук).
// Чанк записывает их в NBT как TAG_Byte_Array.
func (a *Array) Serialize() []byte {
	out := make([]byte, a.length/2)
	copy(out, a.data[a.offset:a.offset+a.length/2])
	return out
}

// Deserialize восстанавливает массив длиной 2*len(packed) полубайтов
func Deserialize(packed []byte) *Array {
	data := make([]byte, len(packed))
	copy(data, packed)
	return &Array{data: data, length: 2 * len(packed)}
}
