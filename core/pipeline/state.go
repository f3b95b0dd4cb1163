package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/janina-ellinghaus/audio-producer/logger"
)

// State is the progress of one pipeline run. Runs move strictly forward
// through the states and end in StatePackaged or StateFailed.
type State int

const (
	StateCreated State = iota
	StateInputStaged
	StateCoverResolved
	StateTranscoded
	StateTagged
	StatePackaged
	StateFailed
)

var stateNames = [...]string{
	StateCreated:       "created",
	StateInputStaged:   "input_staged",
	StateCoverResolved: "cover_resolved",
	StateTranscoded:    "transcoded",
	StateTagged:        "tagged",
	StatePackaged:      "packaged",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

type run struct {
	id    string
	state State
	start time.Time
	hook  func(State)
}

func (r *run) enter(s State, fields ...zap.Field) {
	r.state = s
	fields = append([]zap.Field{
		logger.String("run", r.id),
		logger.String("state", s.String()),
		logger.Duration("elapsed", time.Since(r.start)),
	}, fields...)
	logger.Debug("Pipeline state changed", fields...)
	if r.hook != nil {
		r.hook(s)
	}
}

func (r *run) fail(err error) {
	logger.Warn("Pipeline failed",
		logger.String("run", r.id),
		logger.String("after", r.state.String()),
		logger.ErrorField(err))
	r.state = StateFailed
	if r.hook != nil {
		r.hook(StateFailed)
	}
}
