package consumer

import (
	"time"

	"go.uber.org/zap"

	"github.com/Nauj93x/MoniSenso/internal/domain/reading"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
)

// Alert is an out-of-range reading.
type Alert struct {
	Class string
	Token string
	Value float64
	Range reading.NormalRange
	At    time.Time
}

// Alerter receives alerts. Alert must not block for long: it runs on the
// consumer goroutine.
type Alerter interface {
	Alert(a Alert)
}

// LogAlerter reports alerts as warning log lines.
type LogAlerter struct {
	logger *logging.Logger
}

// NewLogAlerter creates an alerter writing to logger.
func NewLogAlerter(logger *logging.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Alert logs a at warn level.
func (l *LogAlerter) Alert(a Alert) {
	l.logger.Warn("Reading outside normal range",
		zap.String("class", a.Class),
		zap.String("token", a.Token),
		zap.Float64("value", a.Value),
		zap.Float64("low", a.Range.Low),
		zap.Float64("high", a.Range.High),
		zap.String("at", a.At.Format(reading.TimeLayout)),
	)
}
