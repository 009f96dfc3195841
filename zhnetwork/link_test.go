package zhnetwork

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendCompletionSignalThenWait(t *testing.T) {
	sc := newSendCompletion()
	sc.signal(resultSuccess)
	assert.Equal(t, resultSuccess, sc.wait(time.Second))
}

func TestSendCompletionWaitTimesOutWithNoSignal(t *testing.T) {
	sc := newSendCompletion()
	assert.Equal(t, resultTimeout, sc.wait(10*time.Millisecond))
}

func TestSendCompletionResetDropsStaleSignal(t *testing.T) {
	sc := newSendCompletion()
	sc.signal(resultSuccess)
	sc.reset()
	assert.Equal(t, resultTimeout, sc.wait(10*time.Millisecond), "reset must clear a signal nobody waited on yet")
}

func TestSendCompletionLateSignalIsDropped(t *testing.T) {
	sc := newSendCompletion()
	// Simulate the worker timing out first...
	assert.Equal(t, resultTimeout, sc.wait(5*time.Millisecond))
	// ...then a late callback arriving. It must not be observed by a
	// later, unrelated wait.
	sc.signal(resultSuccess)
	sc.reset()
	assert.Equal(t, resultTimeout, sc.wait(5*time.Millisecond))
}
