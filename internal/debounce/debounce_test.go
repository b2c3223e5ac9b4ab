package debounce

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitMergesFragments(t *testing.T) {
	c := New(DefaultWindow)

	processNow := 0
	for _, frag := range []string{"Hola", "como", "estas"} {
		_, _, now := c.Submit("user-1", frag, "SM"+frag)
		if now {
			processNow++
		}
	}
	assert.Equal(t, 1, processNow, "only the first fragment should process immediately")

	combined, providerID, ok := c.Flush("user-1")
	require.True(t, ok)
	assert.Equal(t, "Hola como estas", combined)
	assert.Equal(t, "SMHola", providerID, "the first fragment's provider id wins")
}

func TestSubmitExpiredBufferStartsFresh(t *testing.T) {
	c := New(20 * time.Millisecond)

	_, _, first := c.Submit("user-1", "hola", "SM1")
	require.True(t, first)

	time.Sleep(30 * time.Millisecond)

	combined, providerID, second := c.Submit("user-1", "adios", "SM2")
	require.True(t, second)
	assert.Equal(t, "adios", combined)
	assert.Equal(t, "SM2", providerID)
}

func TestLongFragmentsJoinWithNewline(t *testing.T) {
	c := New(DefaultWindow)

	c.Submit("user-1", "Quiero informacion", "SM1")
	combined, _, _ := c.Submit("user-1", "sobre los departamentos en Tulum", "SM2")

	assert.Equal(t, "Quiero informacion\nsobre los departamentos en Tulum", combined)
}

func TestFlushWithoutBuffer(t *testing.T) {
	c := New(DefaultWindow)

	_, _, ok := c.Flush("nobody")
	assert.False(t, ok)
}

func TestCleanupRemovesBuffer(t *testing.T) {
	c := New(DefaultWindow)

	c.Submit("user-1", "hola", "SM1")
	c.Cleanup("user-1")

	_, _, ok := c.Flush("user-1")
	assert.False(t, ok)
}

func TestConcurrentSubmitsSameSender(t *testing.T) {
	c := New(DefaultWindow)

	var wg sync.WaitGroup
	var mu sync.Mutex
	processNow := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, now := c.Submit("user-1", "hola", "SM")
			if now {
				mu.Lock()
				processNow++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, processNow)

	combined, _, ok := c.Flush("user-1")
	require.True(t, ok)
	assert.Equal(t, 16, len(strings.Fields(combined)))
}
