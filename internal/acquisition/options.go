package acquisition

import "time"

const (
	DefaultUpdateRate     = 500 * time.Millisecond
	DefaultReconnectRate  = 10 * time.Second
	DefaultSearchRadiusKm = 200
	DefaultReplaySpeed    = 1.0

	defaultRetryStep = time.Second
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	UpdateRate     time.Duration
	ReconnectRate  time.Duration
	SearchRadiusKm int
	RecordPath     string
	ReplayPath     string
	ReplaySpeed    float64
	Verbose        bool

	// RetryStep is how long the connection supervisor sleeps between checks
	// for cancellation while waiting for the next attempt.
	RetryStep time.Duration

	// Source and Target label connection status events, e.g. "ip" and
	// "127.0.0.1:51968".
	Source string
	Target string
}

func (o Options) withDefaults() Options {
	if o.UpdateRate <= 0 {
		o.UpdateRate = DefaultUpdateRate
	}
	if o.ReconnectRate <= 0 {
		o.ReconnectRate = DefaultReconnectRate
	}
	if o.SearchRadiusKm <= 0 {
		o.SearchRadiusKm = DefaultSearchRadiusKm
	}
	if o.ReplaySpeed <= 0 {
		o.ReplaySpeed = DefaultReplaySpeed
	}
	if o.RetryStep <= 0 {
		o.RetryStep = defaultRetryStep
	}

	return o
}

// replayInterval scales the recorded cadence by the playback speed.
func replayInterval(recorded time.Duration, speed float64) time.Duration {
	if recorded <= 0 {
		recorded = DefaultUpdateRate
	}
	if speed <= 0 {
		speed = DefaultReplaySpeed
	}
	d := time.Duration(float64(recorded) / speed)
	if d < time.Millisecond {
		return time.Millisecond
	}

	return d
}
