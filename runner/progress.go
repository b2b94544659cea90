package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

const defaultProgressInterval = 30 * time.Second

// ProgressIndicator receives scheduling events. Calls may come from many
// worker goroutines at once.
type ProgressIndicator interface {
	Start(totalTests int)
	StartTest(testName string)
	UpdateTest(testName string, status types.TestStatus)
	Complete()
}

type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) Start(totalTests int)                                {}
func (n *noOpProgressIndicator) StartTest(testName string)                           {}
func (n *noOpProgressIndicator) UpdateTest(testName string, status types.TestStatus) {}
func (n *noOpProgressIndicator) Complete()                                           {}

// consoleProgressIndicator periodically logs how far the run has come and
// which tests have been running the longest. Long-hanging scripts are not
// timed out, so this is the way to spot them.
type consoleProgressIndicator struct {
	logger   log.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	totalTests     int
	completedTests int
	failedTests    int
	startTime      time.Time
	runningTests   map[string]time.Time // test name -> start time
}

// NewConsoleProgressIndicator creates a progress indicator that logs updates
// every updateInterval until Complete is called
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval <= 0 {
		updateInterval = defaultProgressInterval
	}
	return &consoleProgressIndicator{
		logger:       logger,
		interval:     updateInterval,
		stopCh:       make(chan struct{}),
		runningTests: make(map[string]time.Time),
	}
}

func (c *consoleProgressIndicator) Start(totalTests int) {
	c.mu.Lock()
	c.totalTests = totalTests
	c.completedTests = 0
	c.failedTests = 0
	c.startTime = time.Now()
	c.mu.Unlock()

	c.logger.Info("Starting snapshot tests", "totalTests", totalTests)
	go c.progressReporter()
}

func (c *consoleProgressIndicator) StartTest(testName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningTests[testName] = time.Now()
	c.logger.Debug("Test started", "test", testName, "runningTests", len(c.runningTests))
}

func (c *consoleProgressIndicator) UpdateTest(testName string, status types.TestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.runningTests, testName)
	c.completedTests++
	if status.IsFailure() {
		c.failedTests++
	}
	c.logger.Debug("Test completed", "test", testName, "status", status, "completed", c.completedTests, "total", c.totalTests)
}

func (c *consoleProgressIndicator) Complete() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.RLock()
	defer c.mu.RUnlock()
	duration := time.Since(c.startTime).Truncate(time.Millisecond)
	c.logger.Info("Completed snapshot tests", "total", c.totalTests, "failed", c.failedTests, "duration", duration)
}

func (c *consoleProgressIndicator) progressReporter() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var percentComplete float64
	if c.totalTests > 0 {
		percentComplete = float64(c.completedTests) * 100.0 / float64(c.totalTests)
	}

	c.logger.Info("Progress update",
		"completed", c.completedTests,
		"total", c.totalTests,
		"failed", c.failedTests,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(c.runningTests),
		"longestRunning", formatRunningTests(c.runningTests, 3),
	)
}

// formatRunningTests lists the longest running tests first
func formatRunningTests(runningTests map[string]time.Time, maxShow int) string {
	if len(runningTests) == 0 {
		return ""
	}

	type runningTest struct {
		name     string
		duration time.Duration
	}

	now := time.Now()
	running := make([]runningTest, 0, len(runningTests))
	for testName, startTime := range runningTests {
		running = append(running, runningTest{name: testName, duration: now.Sub(startTime)})
	}
	sort.Slice(running, func(i, j int) bool {
		if running[i].duration == running[j].duration {
			return running[i].name < running[j].name
		}
		return running[i].duration > running[j].duration
	})

	var parts []string
	for i, test := range running {
		if i >= maxShow {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%v)", test.name, test.duration.Truncate(time.Second)))
	}
	if len(running) > maxShow {
		parts = append(parts, fmt.Sprintf("+%d more", len(running)-maxShow))
	}
	return strings.Join(parts, ", ")
}
