package game

import (
	"sync"
	"time"
)

// PerformanceMonitor tracks execution time of every system over a rolling window.
type PerformanceMonitor struct {
	systemMetrics map[string]*systemWindow
	mutex         sync.RWMutex

	metricsWindow     int
	warningThreshold  time.Duration
	criticalThreshold time.Duration
}

// SystemMetrics is the published view of one system.
type SystemMetrics struct {
	Name              string        `json:"name"`
	LastExecutionTime time.Duration `json:"last_execution_time"`
	AverageTime       time.Duration `json:"average_time"`
	MaxTime           time.Duration `json:"max_time"`
	TotalExecutions   uint64        `json:"total_executions"`
	Errors            uint64        `json:"errors"`
}

type systemWindow struct {
	SystemMetrics

	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	if windowSize < 1 {
		windowSize = 1
	}
	return &PerformanceMonitor{
		systemMetrics:     make(map[string]*systemWindow),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}
}

func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &systemWindow{
		SystemMetrics: SystemMetrics{Name: systemName},
		recentTimes:   make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	m, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	m.LastExecutionTime = executionTime
	m.TotalExecutions++
	if executionTime > m.MaxTime {
		m.MaxTime = executionTime
	}

	m.recentTimes[m.recentIndex] = executionTime
	m.recentIndex = (m.recentIndex + 1) % pm.metricsWindow
	if !m.windowFilled && m.recentIndex == 0 {
		m.windowFilled = true
	}

	pm.recalculateAverage(m)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if m, exists := pm.systemMetrics[systemName]; exists {
		m.Errors++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(m *systemWindow) {
	limit := pm.metricsWindow
	if !m.windowFilled {
		limit = m.recentIndex
	}
	if limit == 0 {
		return
	}

	var total time.Duration
	for i := 0; i < limit; i++ {
		total += m.recentTimes[i]
	}
	m.AverageTime = total / time.Duration(limit)
}

// Slow returns the systems whose average exceeds the warning threshold.
func (pm *PerformanceMonitor) Slow() []string {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	var slow []string
	for name, m := range pm.systemMetrics {
		if pm.warningThreshold > 0 && m.AverageTime > pm.warningThreshold {
			slow = append(slow, name)
		}
	}
	return slow
}

// GetSystemsStats returns a copy of the metrics of every system.
func (pm *PerformanceMonitor) GetSystemsStats() map[string]SystemMetrics {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	stats := make(map[string]SystemMetrics, len(pm.systemMetrics))
	for name, m := range pm.systemMetrics {
		stats[name] = m.SystemMetrics
	}
	return stats
}
