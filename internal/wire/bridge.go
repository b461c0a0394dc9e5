package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/skobkin/simlink/internal/domain"
)

type RequestKind uint32

const (
	RequestHello RequestKind = iota + 1
	RequestData
	RequestWeather
	RequestStatus
)

func (k RequestKind) String() string {
	switch k {
	case RequestHello:
		return "hello"
	case RequestData:
		return "data"
	case RequestWeather:
		return "weather"
	case RequestStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Request is sent from simlink to the bridge.
type Request struct {
	ID       uint32
	Kind     RequestKind
	RadiusKm uint32
	Station  string
	Nearest  bool
	Lat      float64
	Lon      float64
}

// Response is the bridge reply to a Request with the same ID.
//
// OK=false with SimRunning=true means the bridge had nothing to return this
// time. SimRunning=false means the simulator process is gone.
type Response struct {
	ID         uint32
	OK         bool
	SimRunning bool
	Error      string
	Frame      *domain.Frame
}

const (
	requestFieldID       protowire.Number = 1
	requestFieldKind     protowire.Number = 2
	requestFieldRadius   protowire.Number = 3
	requestFieldStation  protowire.Number = 4
	requestFieldNearest  protowire.Number = 5
	requestFieldLat      protowire.Number = 6
	requestFieldLon      protowire.Number = 7
	responseFieldID      protowire.Number = 1
	responseFieldOK      protowire.Number = 2
	responseFieldRunning protowire.Number = 3
	responseFieldError   protowire.Number = 4
	responseFieldFrame   protowire.Number = 5
)

func EncodeRequest(r Request) []byte {
	var b []byte
	b = protowire.AppendTag(b, requestFieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.ID))
	b = protowire.AppendTag(b, requestFieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Kind))
	if r.RadiusKm > 0 {
		b = protowire.AppendTag(b, requestFieldRadius, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.RadiusKm))
	}
	if r.Station != "" {
		b = protowire.AppendTag(b, requestFieldStation, protowire.BytesType)
		b = protowire.AppendString(b, r.Station)
	}
	if r.Nearest {
		b = protowire.AppendTag(b, requestFieldNearest, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
		b = protowire.AppendTag(b, requestFieldLat, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(r.Lat))
		b = protowire.AppendTag(b, requestFieldLon, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(r.Lon))
	}

	return b
}

func DecodeRequest(b []byte) (Request, error) {
	var r Request
	err := walkFields(b, func(num protowire.Number, v fieldValue) error {
		switch num {
		case requestFieldID:
			// #nosec G115 -- ids are written as uint32.
			r.ID = uint32(v.varint)
		case requestFieldKind:
			// #nosec G115 -- kinds are written as uint32.
			r.Kind = RequestKind(v.varint)
		case requestFieldRadius:
			// #nosec G115 -- radius is written as uint32.
			r.RadiusKm = uint32(v.varint)
		case requestFieldStation:
			r.Station = string(v.bytes)
		case requestFieldNearest:
			r.Nearest = protowire.DecodeBool(v.varint)
		case requestFieldLat:
			r.Lat = math.Float64frombits(v.fixed64)
		case requestFieldLon:
			r.Lon = math.Float64frombits(v.fixed64)
		}

		return nil
	})
	if err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if r.Kind < RequestHello || r.Kind > RequestStatus {
		return Request{}, fmt.Errorf("decode request: unknown kind %d: %w", uint32(r.Kind), ErrMalformed)
	}

	return r, nil
}

func EncodeResponse(r Response) []byte {
	var b []byte
	b = protowire.AppendTag(b, responseFieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.ID))
	b = protowire.AppendTag(b, responseFieldOK, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(r.OK))
	b = protowire.AppendTag(b, responseFieldRunning, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(r.SimRunning))
	if r.Error != "" {
		b = protowire.AppendTag(b, responseFieldError, protowire.BytesType)
		b = protowire.AppendString(b, r.Error)
	}
	if r.Frame != nil {
		b = protowire.AppendTag(b, responseFieldFrame, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeFrame(*r.Frame))
	}

	return b
}

func DecodeResponse(b []byte) (Response, error) {
	var r Response
	err := walkFields(b, func(num protowire.Number, v fieldValue) error {
		switch num {
		case responseFieldID:
			// #nosec G115 -- ids are written as uint32.
			r.ID = uint32(v.varint)
		case responseFieldOK:
			r.OK = protowire.DecodeBool(v.varint)
		case responseFieldRunning:
			r.SimRunning = protowire.DecodeBool(v.varint)
		case responseFieldError:
			r.Error = string(v.bytes)
		case responseFieldFrame:
			frame, err := DecodeFrame(v.bytes)
			if err != nil {
				return err
			}
			r.Frame = &frame
		}

		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	return r, nil
}

type fieldValue struct {
	varint  uint64
	fixed64 uint64
	bytes   []byte
}

// walkFields visits every field of a flat message. Unknown wire types are
// skipped.
func walkFields(b []byte, visit func(num protowire.Number, v fieldValue) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v fieldValue
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			v.fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]

			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := visit(num, v); err != nil {
			return err
		}
	}

	return nil
}
