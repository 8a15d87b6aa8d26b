package widget

import (
	"sync"
	"time"
)

// DefaultTypingWindow — окно затухания индикатора «печатает»
const DefaultTypingWindow = 3 * time.Second

// typingMonitor превращает сырые сигналы «собеседник печатает» в булев
// индикатор с автоистечением. Модель бинарная: различия между несколькими
// печатающими с той стороны не делается.
type typingMonitor struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
	active bool
}

func newTypingMonitor(window time.Duration) *typingMonitor {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &typingMonitor{window: window}
}

// Signal отмечает активность и перезапускает окно. Предыдущий таймер
// останавливается, таймеры не накапливаются.
func (t *typingMonitor) Signal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, func() {
		t.mu.Lock()
		t.active = false
		t.timer = nil
		t.mu.Unlock()
	})
}

// Active сообщает, есть ли сейчас активность печати с той стороны
func (t *typingMonitor) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Clear сбрасывает индикатор немедленно (например, пришло само сообщение)
func (t *typingMonitor) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
