package domain

import (
	"strings"
	"time"
)

type FrameStatus int

const (
	FrameStatusOK FrameStatus = iota
	FrameStatusError
)

func (s FrameStatus) String() string {
	switch s {
	case FrameStatusOK:
		return "ok"
	case FrameStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// WeatherReport is a raw station report carried by a frame. The report text is
// never parsed here.
type WeatherReport struct {
	Station    string
	Raw        string
	ObservedAt time.Time
}

// Frame is one unit of simulator data handed to consumers. Every consumer
// receives its own copy and may keep or modify it.
//
// SequenceID is zero for weather-only replies and positive for data frames.
// Timestamp is set when the frame is emitted, not when it was captured.
type Frame struct {
	SequenceID uint32
	Timestamp  time.Time
	Status     FrameStatus
	StatusText string
	Payload    []byte
	Weather    []WeatherReport
}

func (f Frame) IsWeatherOnly() bool {
	return f.SequenceID == 0
}

func (f Frame) OK() bool {
	return f.Status == FrameStatusOK
}

// Clone returns a copy that shares no slices with f.
func (f Frame) Clone() Frame {
	out := f
	if f.Payload != nil {
		out.Payload = append([]byte(nil), f.Payload...)
	}
	if f.Weather != nil {
		out.Weather = append([]WeatherReport(nil), f.Weather...)
	}

	return out
}

// CloneMessage gives each bus consumer a frame of its own.
func (f Frame) CloneMessage() any {
	return f.Clone()
}

// ErrorFrame builds a frame with error status.
func ErrorFrame(text string) Frame {
	return Frame{Status: FrameStatusError, StatusText: strings.TrimSpace(text)}
}

// WeatherRequest asks the acquisition loop for an out-of-band weather reply.
// The zero value is an invalid (empty) request.
type WeatherRequest struct {
	Station string
	Nearest bool
	Lat     float64
	Lon     float64

	valid bool
}

func NewStationWeatherRequest(station string) WeatherRequest {
	station = strings.ToUpper(strings.TrimSpace(station))

	return WeatherRequest{Station: station, valid: station != ""}
}

func NewNearestWeatherRequest(lat, lon float64) WeatherRequest {
	return WeatherRequest{Nearest: true, Lat: lat, Lon: lon, valid: true}
}

func (r WeatherRequest) Valid() bool {
	return r.valid
}

// Query renders the request the way it is logged and sent to the bridge.
func (r WeatherRequest) Query() string {
	if !r.valid {
		return ""
	}
	if r.Nearest {
		return "nearest"
	}

	return r.Station
}
