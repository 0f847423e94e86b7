package cron

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// State maps a job name to the Unix seconds of its next fire time.
// A missing or zero entry means the job was never scheduled.
type State map[string]int64

// Deterministic encoding keeps identical state byte-identical across saves.
var (
	stateEnc cbor.EncMode
	stateDec cbor.DecMode
)

func init() {
	var err error
	stateEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cron: CBOR encoder initialization failed: " + err.Error())
	}
	stateDec, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("cron: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeState serializes s.
func EncodeState(s State) ([]byte, error) {
	if s == nil {
		s = State{}
	}
	return stateEnc.Marshal(s)
}

// DecodeState parses a blob produced by EncodeState. An empty blob is an
// empty state.
func DecodeState(data []byte) (State, error) {
	s := State{}
	if len(data) == 0 {
		return s, nil
	}
	if err := stateDec.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding run state: %w", err)
	}
	return s, nil
}

// Next returns the stored next fire time for job, or the zero Time.
func (s State) Next(job string) time.Time {
	v := s[job]
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func (s State) set(job string, at time.Time) {
	if at.IsZero() {
		delete(s, job)
		return
	}
	s[job] = at.Unix()
}
