// Package synlog adapts coopsched.Logger onto github.com/joeycumines/logiface,
// using github.com/joeycumines/stumpy as the structured JSON encoder. It
// exists only for hosted builds (linuxpin, runnable demos, tests): firmware
// targets should implement coopsched.Logger directly against a UART write
// rather than link this in, keeping the scheduler's own hot path
// dependency-free.
package synlog

import (
	"fmt"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/coopsched/coopsched"
)

// Adapter implements coopsched.Logger on top of a stumpy-backed logiface
// logger.
type Adapter struct {
	logger *logiface.Logger[*stumpy.Event]
}

// New builds an Adapter writing newline-delimited JSON via stumpy.L.New.
func New(opts ...stumpy.Option) *Adapter {
	logger := stumpy.L.New(stumpy.L.WithStumpy(opts...))
	return &Adapter{logger: logger}
}

func (a *Adapter) Log(level coopsched.LogLevel, msg string, kv ...any) {
	b := a.builder(level)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		if key == "" {
			key = fmt.Sprintf("field%d", i/2)
		}
		switch v := kv[i+1].(type) {
		case string:
			b = b.Str(key, v)
		case error:
			b = b.Err(v)
		case int:
			b = b.Int64(key, int64(v))
		case int64:
			b = b.Int64(key, v)
		case uint32:
			b = b.Int64(key, int64(v))
		default:
			b = b.Str(key, fmt.Sprint(v))
		}
	}
	b.Log(msg)
}

func (a *Adapter) builder(level coopsched.LogLevel) *logiface.Builder[*stumpy.Event] {
	switch level {
	case coopsched.LogDebug:
		return a.logger.Debug()
	case coopsched.LogWarn:
		return a.logger.Warning()
	case coopsched.LogError:
		return a.logger.Err()
	default:
		return a.logger.Info()
	}
}

var _ coopsched.Logger = (*Adapter)(nil)
