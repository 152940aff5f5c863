package midifabric

import "sync"

// LearnTarget identifies what the next trigger should be bound to:
// exactly one of a MappableControl, a ContinuousControl, or a
// ParameterMapping is set.
type LearnTarget struct {
	Control    MappableControl
	Continuous ContinuousControl
	Parameter  *ParameterMapping
}

// LearnSession owns the single active learn operation. Per §4.8 part 4,
// learn is mutually exclusive: arming a new target cancels any
// in-flight one, and capturing a trigger that already has a mapping
// replaces it.
type LearnSession struct {
	mu                 sync.Mutex
	active             bool
	target             LearnTarget
	control            *ControlDispatcher
	param              *ParameterDispatcher
	momentaryHandlers  map[MappableControl]func(MappableControl)
	continuousHandlers map[ContinuousControl]func(ContinuousControl, float64)
}

// NewLearnSession binds a LearnSession to the dispatchers it will
// install mappings into.
func NewLearnSession(control *ControlDispatcher, param *ParameterDispatcher) *LearnSession {
	return &LearnSession{
		control:            control,
		param:              param,
		momentaryHandlers:  make(map[MappableControl]func(MappableControl)),
		continuousHandlers: make(map[ContinuousControl]func(ContinuousControl, float64)),
	}
}

// RegisterControlHandler records the action to run whenever control
// fires, regardless of which trigger is currently (or later) learned
// to it. Call this once per control at engine construction.
func (l *LearnSession) RegisterControlHandler(control MappableControl, handler func(MappableControl)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.momentaryHandlers[control] = handler
}

// RegisterContinuousHandler is RegisterControlHandler for a
// ContinuousControl.
func (l *LearnSession) RegisterContinuousHandler(control ContinuousControl, handler func(ContinuousControl, float64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.continuousHandlers[control] = handler
}

// Start arms learn mode for target, discarding any previously-armed,
// not-yet-captured target.
func (l *LearnSession) Start(target LearnTarget) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = true
	l.target = target
}

// Cancel disarms learn mode without capturing anything.
func (l *LearnSession) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
}

// Active reports whether a learn target is currently armed.
func (l *LearnSession) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Capture is called with the next incoming trigger while learn is
// active. It installs the mapping, replacing any existing mapping to
// the same trigger regardless of that mapping's dispatcher (§4.8 part
// 4: "any existing mapping to the same trigger is replaced"), disarms
// learn, and reports whether it captured anything (false if learn
// wasn't active or had no registered handler).
func (l *LearnSession) Capture(trig Trigger) bool {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return false
	}
	target := l.target
	l.active = false
	l.mu.Unlock()

	key := trig.Key()

	switch {
	case target.Parameter != nil:
		l.BindParameter(key, *target.Parameter)
		return true

	case target.Continuous != "":
		return l.bindContinuous(key, target.Continuous)

	default:
		return l.BindControl(key, target.Control)
	}
}

// unbindAll clears every mapping — momentary, continuous, and
// parameter — currently bound to triggerKey, regardless of which
// dispatcher holds it. Every install path below calls this first so a
// trigger never ends up bound in more than one dispatcher at once.
func (l *LearnSession) unbindAll(triggerKey string) {
	l.control.Unbind(triggerKey)
	l.param.Clear(triggerKey)
}

// BindControl installs control as triggerKey's momentary mapping,
// using the handler registered via RegisterControlHandler, replacing
// any existing mapping (of any kind) on that trigger. Reports false,
// installing nothing, if no handler is registered for control.
func (l *LearnSession) BindControl(triggerKey string, control MappableControl) bool {
	l.mu.Lock()
	handler := l.momentaryHandlers[control]
	l.mu.Unlock()
	if handler == nil {
		return false
	}
	l.unbindAll(triggerKey)
	l.control.BindMomentary(triggerKey, control, handler)
	return true
}

// bindContinuous installs control as triggerKey's continuous mapping,
// using the handler registered via RegisterContinuousHandler,
// replacing any existing mapping (of any kind) on that trigger.
func (l *LearnSession) bindContinuous(triggerKey string, control ContinuousControl) bool {
	l.mu.Lock()
	handler := l.continuousHandlers[control]
	l.mu.Unlock()
	if handler == nil {
		return false
	}
	l.unbindAll(triggerKey)
	l.control.BindContinuous(triggerKey, control, handler)
	return true
}

// BindParameter installs mapping as a target for triggerKey, replacing
// any existing mapping (of any kind) on that trigger.
func (l *LearnSession) BindParameter(triggerKey string, mapping ParameterMapping) {
	l.unbindAll(triggerKey)
	l.param.Bind(triggerKey, mapping)
}
