package widget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingExpiry(t *testing.T) {
	tm := newTypingMonitor(300 * time.Millisecond)
	assert.False(t, tm.Active())

	tm.Signal()
	assert.True(t, tm.Active())

	// без новых сигналов индикатор гаснет после окна
	time.Sleep(450 * time.Millisecond)
	assert.False(t, tm.Active())
}

func TestTypingRestartOnSignal(t *testing.T) {
	tm := newTypingMonitor(300 * time.Millisecond)

	tm.Signal()
	time.Sleep(200 * time.Millisecond)

	// второй сигнал перезапускает окно: исходный дедлайн (300 мс) уже позади,
	// а индикатор все еще горит
	tm.Signal()
	time.Sleep(200 * time.Millisecond)
	assert.True(t, tm.Active())

	// после тишины в полное окно — гаснет
	time.Sleep(250 * time.Millisecond)
	assert.False(t, tm.Active())
}

func TestTypingClear(t *testing.T) {
	tm := newTypingMonitor(time.Minute)
	tm.Signal()
	assert.True(t, tm.Active())

	tm.Clear()
	assert.False(t, tm.Active())

	// Clear без активности — no-op
	tm.Clear()
	assert.False(t, tm.Active())
}
