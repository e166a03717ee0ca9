package coopsched

import "github.com/coopsched/coopsched/pin"

// heartbeatBody toggles p every intervalSecs, forever, via ordinary
// Timeout waits. It is installed as an ordinary task (not dispatcher-
// internal machinery)
// so it shows up in Status/Stop like any other — a user can kill the
// heartbeat without killing the scheduler.
func heartbeatBody(p pin.PinIO, intervalSecs float64) Body {
	return func(c *Control) {
		level := false
		for {
			level = !level
			p.Write(level)
			if err := Sleep(c, intervalSecs); err != nil {
				// Sleep only fails on an out-of-range interval, and
				// WithHeartbeatInterval does not validate its argument, so
				// that surfaces here; treat it as fatal to this task rather
				// than spinning.
				return
			}
		}
	}
}
