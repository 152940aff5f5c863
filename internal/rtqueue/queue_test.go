package rtqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/looperd/internal/score"
)

func TestQueuePushDrainOrder(t *testing.T) {
	q := NewQueue(4)
	assert.True(t, q.Push(Command{Kind: CmdStartTransport, AtBar: 1}))
	assert.True(t, q.Push(Command{Kind: CmdStopTransport}))

	var kinds []CommandKind
	q.Drain(func(c Command) { kinds = append(kinds, c.Kind) })

	assert.Equal(t, []CommandKind{CmdStartTransport, CmdStopTransport}, kinds)
	assert.Equal(t, 0, q.Pending())
}

func TestQueueFullReportsFalse(t *testing.T) {
	q := NewQueue(2) // rounds up to 2
	assert.True(t, q.Push(Command{Kind: CmdStopTransport}))
	assert.True(t, q.Push(Command{Kind: CmdStopTransport}))
	assert.False(t, q.Push(Command{Kind: CmdStopTransport}))
}

func TestSnapshotSlotAcknowledge(t *testing.T) {
	var slot SnapshotSlot
	p1 := &score.Project{}
	epoch := slot.Install(p1)
	assert.False(t, slot.WaitAcknowledged(epoch))

	got := slot.Load()
	assert.Same(t, p1, got)
	slot.Acknowledge()
	assert.True(t, slot.WaitAcknowledged(epoch))
}
