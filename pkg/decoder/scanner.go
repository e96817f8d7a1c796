package decoder

import "errors"

// StopReason says why a scan ended.
type StopReason uint8

const (
	StopEndOfFrame StopReason = iota
	StopTruncated
	StopUnrecognizedType
)

func (s StopReason) String() string {
	switch s {
	case StopTruncated:
		return "truncated"
	case StopUnrecognizedType:
		return "unrecognized type"
	default:
		return "end of frame"
	}
}

// Element records one identifier found during a scan.
type Element struct {
	Offset     int
	Identifier ObjectIdentifier
	Quantity   Quantity
	Tag        TypeTag
	Value      Value
	Scaled     float64
	Assigned   bool
	Separator  bool
	Err        error
}

// Report is the full outcome of scanning one frame.
type Report struct {
	Reading  Reading
	Found    bool
	Elements []Element
	Steps    int
	Stop     StopReason
}

const (
	separatorStructure byte = 0x02
	separatorScaler    byte = 0x0F
	separatorSkip           = 2
)

type scanState uint8

const (
	stateScanning scanState = iota
	stateHaveIdentifier
	stateDone
)

// Scan walks frame from p.StartOffset, decoding every OBIS-tagged element
// it can reach. It never fails; problems end the scan early and are
// recorded in the report.
func Scan(frame []byte, p Profile) Report {
	var rep Report
	end := len(frame) - p.TrailerMargin
	cursor := p.StartOffset
	state := stateScanning

	for state != stateDone {
		if cursor >= end {
			break
		}
		switch state {
		case stateScanning:
			if frame[cursor] == byte(TypeOctetString) && cursor+1 < len(frame) && frame[cursor+1] == ObisLen {
				state = stateHaveIdentifier
				continue
			}
			cursor++
			rep.Steps++

		case stateHaveIdentifier:
			var next int
			next, state = scanElement(frame, cursor, p, &rep)
			cursor = next
		}
	}
	return rep
}

// scanElement decodes the identifier marker at cursor and the value after
// it, returning the next cursor and state.
func scanElement(frame []byte, cursor int, p Profile, rep *Report) (int, scanState) {
	el := Element{Offset: cursor}
	idStart := cursor + 2
	if idStart+ObisLen > len(frame) {
		el.Err = ErrTruncated
		rep.Elements = append(rep.Elements, el)
		rep.Stop = StopTruncated
		return len(frame), stateDone
	}
	copy(el.Identifier[:], frame[idStart:idStart+ObisLen])
	el.Quantity = p.Classify(el.Identifier)
	tagPos := idStart + ObisLen
	if tagPos < len(frame) {
		el.Tag = TypeTag(frame[tagPos])
	}

	v, n, err := DecodeValue(frame, tagPos, el.Identifier)
	if err != nil {
		el.Err = err
		rep.Elements = append(rep.Elements, el)
		rep.Stop = StopTruncated
		if errors.Is(err, ErrUnrecognizedType) {
			rep.Stop = StopUnrecognizedType
		}
		return len(frame), stateDone
	}
	el.Value = v

	payload := tagPos + 1
	el.Scaled = float64(v.Uint)
	if v.Kind == KindUnsigned16 {
		scaler, _ := ScalerAt(frame, payload+p.ScalerOffset)
		el.Scaled = Scale(v.Uint, scaler)
	}

	if e := lookup(el.Identifier, p.ClassifyTariff); e != nil && e.kind == v.Kind {
		e.assign(&rep.Reading, v, el.Scaled)
		el.Assigned = true
		rep.Found = true
	}

	next := payload + n
	if next < len(frame)-1 && (frame[next] == separatorStructure || frame[next] == separatorScaler) {
		next += separatorSkip
		el.Separator = true
	}
	rep.Elements = append(rep.Elements, el)
	return next, stateScanning
}
