package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBacklog_Peek_NonEmpty_ReturnsFront(t *testing.T) {
	// GIVEN a backlog with packets [A, B]
	b := &Backlog{}
	pA := &Packet{ID: 1, Size: 100}
	pB := &Packet{ID: 2, Size: 300}
	b.Enqueue(pA)
	b.Enqueue(pB)

	// WHEN Peek() is called
	got := b.Peek()

	// THEN it returns the front element without removing it
	assert.Same(t, pA, got)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(400), b.Bits())
}

func TestBacklog_Peek_Empty_ReturnsNil(t *testing.T) {
	b := &Backlog{}
	assert.Nil(t, b.Peek())
	assert.Nil(t, b.Dequeue())
}

func TestBacklog_Dequeue_FIFOAndBitAccounting(t *testing.T) {
	b := &Backlog{}
	for i := int64(1); i <= 3; i++ {
		b.Enqueue(&Packet{ID: i, Size: i * 10})
	}

	for i := int64(1); i <= 3; i++ {
		p := b.Dequeue()
		assert.Equal(t, i, p.ID)
	}
	assert.Zero(t, b.Len())
	assert.Zero(t, b.Bits())
}

func TestBacklog_Enqueue_NilPanics(t *testing.T) {
	b := &Backlog{}
	assert.Panics(t, func() { b.Enqueue(nil) })
}

func TestBacklog_String(t *testing.T) {
	b := &Backlog{}
	assert.Equal(t, "[]", b.String())
	b.Enqueue(&Packet{ID: 7, Flow: 1, Size: 8})
	assert.Contains(t, b.String(), "ID: 7")
}
