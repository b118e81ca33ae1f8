// Implements the Backlog, the per-flow FIFO of packets waiting for service.
// Packets are enqueued on arrival

package sim

import (
	"fmt"
	"strings"

	"github.com/gammazero/deque"
)

// Backlog represents a FIFO queue of packets belonging to a single flow.
// Packets leave strictly in arrival order; no policy may reorder within a flow.
type Backlog struct {
	queue deque.Deque[*Packet]
	bits  int64 // Sum of sizes of queued packets
}

// Enqueue adds a packet to the back of the backlog.
func (b *Backlog) Enqueue(p *Packet) {
	if p == nil {
		panic("Enqueue: packet must not be nil")
	}
	b.queue.PushBack(p)
	b.bits += p.Size
}

func (b *Backlog) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < b.queue.Len(); i++ {
		sb.WriteString(fmt.Sprint(b.queue.At(i)))
		if i < b.queue.Len()-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of packets in the backlog.
func (b *Backlog) Len() int {
	return b.queue.Len()
}

// Bits returns the total size of the queued packets.
func (b *Backlog) Bits() int64 {
	return b.bits
}

// Peek returns the packet at the front of the backlog without removing it.
// Returns nil if the backlog is empty.
func (b *Backlog) Peek() *Packet {
	if b.queue.Len() == 0 {
		return nil
	}
	return b.queue.Front()
}

// Dequeue removes the packet at the front of the backlog.
// Returns nil if the backlog is empty.
func (b *Backlog) Dequeue() *Packet {
	if b.queue.Len() == 0 {
		return nil
	}
	p := b.queue.PopFront()
	b.bits -= p.Size
	return p
}
