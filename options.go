package coopsched

import "github.com/coopsched/coopsched/pin"

// config collects everything an Option can set: a private config struct
// plus exported Option funcs, rather than a constructor with a long
// parameter list.
type config struct {
	clock      Clock
	gcHook     pin.GCHook
	logger     Logger
	gcEnabled  bool
	gcInterval float64 // seconds; idle-compaction gate, default 0.05 (50ms)
	heartbeat  bool
	heartbeatPin pin.PinIO
	heartbeatInterval float64 // seconds, default 0.5
}

func defaultConfig() *config {
	return &config{
		clock:             newDefaultClock(),
		gcHook:             pin.RuntimeGCHook{},
		logger:             noopLogger{},
		gcEnabled:          true,
		gcInterval:         0.05,
		heartbeat:          false,
		heartbeatInterval:  0.5,
	}
}

// Option configures a Sched at construction time.
type Option func(*config)

// WithClock overrides the default hosted Clock, e.g. with a firmware
// register adapter or pin.FakeClock in tests.
func WithClock(c Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithGCHook overrides the default runtime.GC-backed GCHook.
func WithGCHook(h pin.GCHook) Option {
	return func(cfg *config) { cfg.gcHook = h }
}

// WithGCEnable toggles the idle heap-compaction task. It is enabled by
// default; disable it on targets that manage their own GC policy.
func WithGCEnable(enabled bool) Option {
	return func(cfg *config) { cfg.gcEnabled = enabled }
}

// WithGCInterval overrides the minimum idle time between compaction
// passes.
func WithGCInterval(secs float64) Option {
	return func(cfg *config) { cfg.gcInterval = secs }
}

// WithHeartbeat installs a 500ms-default LED-toggle task driven off p.
// Disabled unless called.
func WithHeartbeat(p pin.PinIO) Option {
	return func(cfg *config) {
		cfg.heartbeat = true
		cfg.heartbeatPin = p
	}
}

// WithHeartbeatInterval overrides the default 500ms heartbeat period.
func WithHeartbeatInterval(secs float64) Option {
	return func(cfg *config) { cfg.heartbeatInterval = secs }
}

// WithLogger installs a Logger other than the silent default.
func WithLogger(l Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}
