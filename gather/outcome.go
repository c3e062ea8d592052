package gather

import (
	"encoding/json"

	"github.com/Comcast/laters/core"
)

// Outcome is one input's final state, as reported by AllSettled.
// Value is meaningful only when Status is Fulfilled; Reason only when
// Rejected.
type Outcome struct {
	Status core.Status
	Value  interface{}
	Reason error
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"status": o.Status,
	}
	switch o.Status {
	case core.Fulfilled:
		m["value"] = o.Value
	case core.Rejected:
		m["reason"] = o.Reason.Error()
	}
	return json.Marshal(m)
}
