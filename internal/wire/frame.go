// Package wire encodes frames and simulator bridge messages in protobuf wire
// format. Messages are hand-laid with protowire so the bridge side can be
// written in any language with a protobuf runtime.
package wire

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/skobkin/simlink/internal/domain"
)

// Frame field numbers.
const (
	frameFieldSequence   protowire.Number = 1
	frameFieldTimestamp  protowire.Number = 2
	frameFieldStatus     protowire.Number = 3
	frameFieldStatusText protowire.Number = 4
	frameFieldPayload    protowire.Number = 5
	frameFieldWeather    protowire.Number = 6
)

// WeatherReport field numbers.
const (
	weatherFieldStation  protowire.Number = 1
	weatherFieldRaw      protowire.Number = 2
	weatherFieldObserved protowire.Number = 3
)

var ErrMalformed = errors.New("malformed message")

// EncodeFrame serializes f. Timestamps are stored with second precision.
func EncodeFrame(f domain.Frame) []byte {
	var b []byte
	b = protowire.AppendTag(b, frameFieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.SequenceID))
	if !f.Timestamp.IsZero() {
		b = protowire.AppendTag(b, frameFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.Timestamp.Unix()))
	}
	if f.Status != domain.FrameStatusOK {
		b = protowire.AppendTag(b, frameFieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.Status))
	}
	if f.StatusText != "" {
		b = protowire.AppendTag(b, frameFieldStatusText, protowire.BytesType)
		b = protowire.AppendString(b, f.StatusText)
	}
	if len(f.Payload) > 0 {
		b = protowire.AppendTag(b, frameFieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	for _, report := range f.Weather {
		b = protowire.AppendTag(b, frameFieldWeather, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeWeatherReport(report))
	}

	return b
}

func DecodeFrame(b []byte) (domain.Frame, error) {
	var f domain.Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Frame{}, fmt.Errorf("frame tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == frameFieldSequence && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame sequence: %w", protowire.ParseError(n))
			}
			// #nosec G115 -- sequence ids are written as uint32.
			f.SequenceID = uint32(v)
			b = b[n:]
		case num == frameFieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame timestamp: %w", protowire.ParseError(n))
			}
			// #nosec G115 -- unix seconds fit in int64.
			f.Timestamp = time.Unix(int64(v), 0).UTC()
			b = b[n:]
		case num == frameFieldStatus && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame status: %w", protowire.ParseError(n))
			}
			status := domain.FrameStatus(v)
			if status != domain.FrameStatusOK && status != domain.FrameStatusError {
				return domain.Frame{}, fmt.Errorf("frame status %d: %w", v, ErrMalformed)
			}
			f.Status = status
			b = b[n:]
		case num == frameFieldStatusText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame status text: %w", protowire.ParseError(n))
			}
			f.StatusText = v
			b = b[n:]
		case num == frameFieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame payload: %w", protowire.ParseError(n))
			}
			f.Payload = append([]byte(nil), v...)
			b = b[n:]
		case num == frameFieldWeather && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame weather: %w", protowire.ParseError(n))
			}
			report, err := decodeWeatherReport(v)
			if err != nil {
				return domain.Frame{}, err
			}
			f.Weather = append(f.Weather, report)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Frame{}, fmt.Errorf("frame field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	// Status text is present exactly when the frame reports an error.
	switch {
	case f.Status == domain.FrameStatusError && f.StatusText == "":
		return domain.Frame{}, fmt.Errorf("error frame without status text: %w", ErrMalformed)
	case f.Status == domain.FrameStatusOK && f.StatusText != "":
		return domain.Frame{}, fmt.Errorf("ok frame with status text: %w", ErrMalformed)
	}

	return f, nil
}

func encodeWeatherReport(r domain.WeatherReport) []byte {
	var b []byte
	b = protowire.AppendTag(b, weatherFieldStation, protowire.BytesType)
	b = protowire.AppendString(b, r.Station)
	b = protowire.AppendTag(b, weatherFieldRaw, protowire.BytesType)
	b = protowire.AppendString(b, r.Raw)
	if !r.ObservedAt.IsZero() {
		b = protowire.AppendTag(b, weatherFieldObserved, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.ObservedAt.Unix()))
	}

	return b
}

func decodeWeatherReport(b []byte) (domain.WeatherReport, error) {
	var r domain.WeatherReport
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.WeatherReport{}, fmt.Errorf("weather tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == weatherFieldStation && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.WeatherReport{}, fmt.Errorf("weather station: %w", protowire.ParseError(n))
			}
			r.Station = v
			b = b[n:]
		case num == weatherFieldRaw && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.WeatherReport{}, fmt.Errorf("weather raw: %w", protowire.ParseError(n))
			}
			r.Raw = v
			b = b[n:]
		case num == weatherFieldObserved && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.WeatherReport{}, fmt.Errorf("weather observed: %w", protowire.ParseError(n))
			}
			// #nosec G115 -- unix seconds fit in int64.
			r.ObservedAt = time.Unix(int64(v), 0).UTC()
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.WeatherReport{}, fmt.Errorf("weather field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return r, nil
}
