package wow

import (
	"encoding/json"
	"fmt"
)

// SpeedPolicy is the store-wide default for how many confirmations
// an invoice needs when the prompt carries no explicit override.
type SpeedPolicy int

const (
	HighSpeed SpeedPolicy = iota
	MediumSpeed
	LowMediumSpeed
	LowSpeed
)

var speedPolicyNames = map[SpeedPolicy]string{
	HighSpeed:      "HighSpeed",
	MediumSpeed:    "MediumSpeed",
	LowMediumSpeed: "LowMediumSpeed",
	LowSpeed:       "LowSpeed",
}

func (s SpeedPolicy) String() string {
	if name, ok := speedPolicyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SpeedPolicy(%d)", int(s))
}

func ParseSpeedPolicy(name string) (SpeedPolicy, error) {
	for k, v := range speedPolicyNames {
		if v == name {
			return k, nil
		}
	}
	return 0, NewErr(BadRequest, "unknown speed policy: %q", name)
}

func (s SpeedPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SpeedPolicy) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	p, err := ParseSpeedPolicy(name)
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// Confirmations required by each speed tier, once the lock time has matured.
const (
	highSpeedConfirmations      = 0
	mediumSpeedConfirmations    = 1
	lowMediumSpeedConfirmations = 2
	lowSpeedConfirmations       = 6
)

// ConfirmationsRequired returns how many confirmations the payment needs
// before it counts as settled. The first matching rule wins:
// an immature lock time, then the prompt's override, then the speed tier.
func ConfirmationsRequired(data PaymentData, speed SpeedPolicy) int64 {
	if data.ConfirmationCount < data.LockTime {
		return data.LockTime - data.ConfirmationCount
	}
	if data.InvoiceSettledConfirmationThreshold != nil {
		return *data.InvoiceSettledConfirmationThreshold
	}
	switch speed {
	case HighSpeed:
		return highSpeedConfirmations
	case MediumSpeed:
		return mediumSpeedConfirmations
	case LowMediumSpeed:
		return lowMediumSpeedConfirmations
	case LowSpeed:
		return lowSpeedConfirmations
	default:
		return lowSpeedConfirmations
	}
}

func IsSettled(data PaymentData, speed SpeedPolicy) bool {
	return data.ConfirmationCount >= ConfirmationsRequired(data, speed)
}
