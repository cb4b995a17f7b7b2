package sandbox

import (
	"runtime"
	"sync"
	"time"
)

// memoryMonitor polls heap usage and fires onExceeded once the configured
// cap is crossed. goja gives no per-isolate heap accounting, so this
// approximates the isolate's usage with whole-process heap deltas.
type memoryMonitor struct {
	limitBytes uint64
	onExceeded func()

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	baseline uint64
	peak     uint64
}

func newMemoryMonitor(limitBytes uint64, onExceeded func()) *memoryMonitor {
	return &memoryMonitor{limitBytes: limitBytes, onExceeded: onExceeded}
}

func (m *memoryMonitor) start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.baseline = ms.HeapAlloc
	stop := m.stopCh
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(memoryPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var ms runtime.MemStats
				runtime.ReadMemStats(&ms)
				used := uint64(0)
				if ms.HeapAlloc > m.baseline {
					used = ms.HeapAlloc - m.baseline
				}
				m.mu.Lock()
				if used > m.peak {
					m.peak = used
				}
				exceeded := used > m.limitBytes
				m.mu.Unlock()
				if exceeded {
					m.onExceeded()
					return
				}
			}
		}
	}()
}

func (m *memoryMonitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

func (m *memoryMonitor) peakUsage() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}
