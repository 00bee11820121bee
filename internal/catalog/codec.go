package catalog

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/audiolibrelab/irdecode/internal/trace"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsEmpty,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog CBOR decoder mode: %v", err))
	}
}

// encodeDurations packs a trace as a CBOR array of unsigned integers,
// typically two or three bytes per duration.
func encodeDurations(d trace.Durations) ([]byte, error) {
	return encMode.Marshal([]int(d))
}

func decodeDurations(data []byte) (trace.Durations, error) {
	var out []int
	if err := decMode.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode durations: %w", err)
	}
	return trace.Durations(out), nil
}
