package queue

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

// intervalSchedule fires every interval. cron.Every rounds to whole seconds,
// which is too coarse for tests.
type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// cronLogger routes the scheduler's own logs through zap
type cronLogger struct {
	log *logger.Logger
}

var _ cron.Logger = cronLogger{}

// Info is dropped; the scheduler reports every wake-up at this level
func (l cronLogger) Info(string, ...interface{}) {}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
