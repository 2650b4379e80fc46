package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu   sync.Mutex
	seen []GameEvent
	fail EventType
}

func (p *recordingPersister) Append(e GameEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.Type == p.fail {
		return errors.New("write failed")
	}
	p.seen = append(p.seen, e)
	return nil
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestAppend_StampsSeqIDAndTime(t *testing.T) {
	el := NewEventLog(10, nil)

	a := el.Append(GameEvent{Type: EventTypeUpdate})
	b := el.Append(GameEvent{Type: EventTypeTaskSelected, ID: "fixed"})

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "fixed", b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, uint64(2), el.LastSeq())
}

func TestSince(t *testing.T) {
	el := NewEventLog(10, nil)
	for i := 0; i < 5; i++ {
		el.Append(GameEvent{Type: EventTypeUpdate})
	}

	assert.Len(t, el.Since(0), 5)
	got := el.Since(3)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Seq)
	assert.Empty(t, el.Since(5))
	assert.Empty(t, el.Since(99))
}

func TestRetentionDropsOldestButKeepsSeq(t *testing.T) {
	el := NewEventLog(4, nil)
	for i := 0; i < 9; i++ {
		el.Append(GameEvent{Type: EventTypeUpdate})
	}

	all := el.Replay()
	assert.LessOrEqual(t, len(all), 4)
	assert.Equal(t, uint64(9), all[len(all)-1].Seq)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].Seq+1, all[i].Seq)
	}

	// A reader that fell behind gets everything still retained.
	assert.Equal(t, all, el.Since(1))
}

func TestFilters(t *testing.T) {
	el := NewEventLog(0, nil)
	el.Append(GameEvent{Type: EventTypeTaskSelected, ActorID: "p1"})
	el.Append(GameEvent{Type: EventTypeBoxMade, ActorID: "p2"})
	el.Append(GameEvent{Type: EventTypeTaskSelected, ActorID: "p2"})

	assert.Len(t, el.GetByType(EventTypeTaskSelected), 2)
	assert.Len(t, el.GetByActor("p2"), 2)
}

func TestPersisterReceivesWrites(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog(0, p)
	el.Append(GameEvent{Type: EventTypeBoxMade})

	assert.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPersisterSeesSeqOrder(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog(8, p)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				el.Append(GameEvent{Type: EventTypeBoxMade})
			}
		}()
	}
	wg.Wait()
	el.Close()

	require.Len(t, p.seen, 200)
	for i, e := range p.seen {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestPersistErrorsAreCounted(t *testing.T) {
	p := &recordingPersister{fail: EventTypeGameSaved}
	el := NewEventLog(0, p)
	el.Append(GameEvent{Type: EventTypeGameSaved})
	el.Append(GameEvent{Type: EventTypeBoxMade})
	el.Close()

	assert.Equal(t, uint64(1), el.PersistErrors())
	assert.Equal(t, 1, p.count())
}

func TestAppendAfterCloseStaysInMemory(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog(0, p)
	el.Close()
	el.Close()

	e := el.Append(GameEvent{Type: EventTypeBoxMade})
	assert.Equal(t, uint64(1), e.Seq)
	assert.Len(t, el.Replay(), 1)
	assert.Equal(t, 0, p.count())
}
