package degradation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageFailure records one stage that failed and the fallback taken
type StageFailure struct {
	Stage    Stage            `json:"stage"`
	Error    string           `json:"error"`
	Fallback FallbackBehavior `json:"fallback"`
	At       time.Time        `json:"at"`
}

// Recorder collects the stage failures of one request. Stages that fan out may record
// concurrently.
type Recorder struct {
	mu       sync.Mutex
	failures []StageFailure
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecorder creates a recorder; a nil clock uses time.Now
func NewRecorder(logger *zap.Logger, clock func() time.Time) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{logger: logger, now: clock}
}

// Record notes that stage failed with err and takes the stage's default fallback. A nil err is
// ignored.
func (r *Recorder) Record(stage Stage, err error) {
	r.RecordWith(stage, err, FallbackFor(stage))
}

// RecordWith is Record with an explicit fallback
func (r *Recorder) RecordWith(stage Stage, err error, fallback FallbackBehavior) {
	if err == nil {
		return
	}
	f := StageFailure{Stage: stage, Error: err.Error(), Fallback: fallback, At: r.now().UTC()}
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()

	RecordFallbackBehavior(stage, fallback)
	r.logger.Warn("Stage failed, using fallback",
		zap.String("stage", string(stage)),
		zap.String("fallback", string(fallback)),
		zap.Error(err))
}

// Failures returns a copy of the recorded failures in recording order; never nil
func (r *Recorder) Failures() []StageFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageFailure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Failed reports whether stage has a recorded failure
func (r *Recorder) Failed(stage Stage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.failures {
		if f.Stage == stage {
			return true
		}
	}
	return false
}

// Level summarises the recorded failures
func (r *Recorder) Level() Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return levelOf(r.failures)
}

func levelOf(failures []StageFailure) Level {
	if len(failures) == 0 {
		return LevelNone
	}
	for _, f := range failures {
		if f.Stage.critical() {
			return LevelSevere
		}
	}
	if len(failures) == 1 {
		return LevelMinor
	}
	return LevelModerate
}
