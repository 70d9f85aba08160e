package register

import (
	"fmt"
	"sync/atomic"
)

// DefaultSize is the number of words in a bank unless configured otherwise.
// It covers the PLC read-only block (ROBase + BlockSize).
const DefaultSize = 0x400

// MinSize is the smallest bank a plant can be configured with.
const MinSize = DefaultSize

// Accessor is the read/write contract shared by local banks and remote
// clients. Implementations must be safe for concurrent use.
type Accessor interface {
	// Read returns the word at addr.
	Read(addr uint16) (uint16, error)

	// ReadRange returns count words starting at addr.
	ReadRange(addr, count uint16) ([]uint16, error)

	// Write stores value at addr.
	Write(addr, value uint16) error

	// WriteRange stores values starting at addr.
	WriteRange(addr uint16, values []uint16) error
}

// Ensure Bank implements Accessor.
var _ Accessor = (*Bank)(nil)

// Bank is an in-memory register bank for one device.
//
// Thread Safety:
//   - Single-word operations are atomic.
//   - Range operations are not atomic; concurrent writers may interleave.
type Bank struct {
	name  string
	words []atomic.Uint32
}

// NewBank creates a zero-initialised bank with size words.
// Sizes below MinSize are raised to MinSize.
func NewBank(name string, size int) *Bank {
	if size < MinSize {
		size = MinSize
	}
	return &Bank{
		name:  name,
		words: make([]atomic.Uint32, size),
	}
}

// Name returns the device name the bank belongs to.
func (b *Bank) Name() string {
	return b.name
}

// Size returns the number of words in the bank.
func (b *Bank) Size() int {
	return len(b.words)
}

// Read returns the word at addr.
func (b *Bank) Read(addr uint16) (uint16, error) {
	if err := b.check(addr, 1); err != nil {
		return 0, err
	}
	return uint16(b.words[addr].Load()), nil //nolint:gosec // stored values are always 16-bit
}

// ReadRange returns count words starting at addr.
//
// Each word is loaded atomically, but the range as a whole is not a
// snapshot: a concurrent writer may change words already read.
func (b *Bank) ReadRange(addr, count uint16) ([]uint16, error) {
	if err := b.check(addr, int(count)); err != nil {
		return nil, err
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = uint16(b.words[int(addr)+i].Load()) //nolint:gosec // stored values are always 16-bit
	}
	return out, nil
}

// Write stores value at addr.
func (b *Bank) Write(addr, value uint16) error {
	if err := b.check(addr, 1); err != nil {
		return err
	}
	b.words[addr].Store(uint32(value))
	return nil
}

// WriteRange stores values starting at addr, one word at a time.
// Nothing is written when the range does not fit.
func (b *Bank) WriteRange(addr uint16, values []uint16) error {
	if err := b.check(addr, len(values)); err != nil {
		return err
	}
	for i, v := range values {
		b.words[int(addr)+i].Store(uint32(v))
	}
	return nil
}

// check validates that [addr, addr+count) lies inside the bank.
func (b *Bank) check(addr uint16, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: %s: count %d", ErrOutOfRange, b.name, count)
	}
	if int(addr) >= len(b.words) || int(addr)+count > len(b.words) {
		return fmt.Errorf("%w: %s: addr %#x count %d size %d", ErrOutOfRange, b.name, addr, count, len(b.words))
	}
	return nil
}
