package serialport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"psychro-dash/internal/psychro"
)

var ErrMalformedLine = errors.New("malformed serial line")

// Frame is one line from the psychrometer firmware. Firmware is set only for
// the long form, which carries the values the microcontroller computed itself.
type Frame struct {
	DryBulb  float64
	WetBulb  float64
	Firmware *FirmwareValues
}

type FirmwareValues struct {
	RelativeHumidity float64 // fraction
	DewPoint         float64
	AbsoluteHumidity float64
}

// ParseLine accepts "dry,wet" or "dry,wet,rh,dew,abs".
func ParseLine(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Frame{}, fmt.Errorf("%w: empty", ErrMalformedLine)
	}
	parts := strings.Split(line, ",")
	if len(parts) != 2 && len(parts) != 5 {
		return Frame{}, fmt.Errorf("%w: %d fields in %q", ErrMalformedLine, len(parts), line)
	}

	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: field %d of %q: %v", ErrMalformedLine, i+1, line, err)
		}
		values[i] = v
	}

	f := Frame{DryBulb: values[0], WetBulb: values[1]}
	if len(values) == 5 {
		if err := psychro.ValidateRelativeHumidity(values[2]); err != nil {
			return Frame{}, err
		}
		f.Firmware = &FirmwareValues{
			RelativeHumidity: values[2],
			DewPoint:         values[3],
			AbsoluteHumidity: values[4],
		}
	}
	return f, nil
}

func (f Frame) Reading() psychro.Reading {
	return psychro.Reading{DryBulb: f.DryBulb, WetBulb: f.WetBulb}
}
