package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_DeliversInOrderWithoutBlockingProducer(t *testing.T) {
	box := newMailbox[int]()
	defer box.close()

	for i := range 1000 {
		require.True(t, box.push(i))
	}

	for i := range 1000 {
		select {
		case got := <-box.C():
			require.Equal(t, i, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for value %d", i)
		}
	}
}

func TestMailbox_CloseClosesChannel(t *testing.T) {
	box := newMailbox[string]()
	box.close()
	box.close()

	assert.False(t, box.push("late"))

	select {
	case _, ok := <-box.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
