// Package triage classifies self-reported vitals into a coarse risk level.
package triage

import "errors"

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

var ErrInvalidReading = errors.New("invalid_reading")

// Reading is one blood pressure measurement in mmHg with heart rate in bpm.
type Reading struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	HeartRate int `json:"heart_rate"`
}

func (r Reading) Validate() error {
	if r.Systolic <= 0 || r.Diastolic <= 0 || r.HeartRate <= 0 ||
		r.Systolic > 300 || r.Diastolic > 250 || r.HeartRate > 300 {
		return ErrInvalidReading
	}
	return nil
}

type Result struct {
	Risk    Risk     `json:"risk"`
	Label   string   `json:"label"`
	Reasons []string `json:"reasons"`
}

// EvaluatePressure applies systolic thresholds first, then diastolic ones
// that may only raise the risk, then heart rate while the risk is still low.
func EvaluatePressure(r Reading) Result {
	res := Result{Risk: RiskLow, Label: "Presión Normal"}
	note := func(risk Risk, label, reason string) {
		res.Risk, res.Label = risk, label
		res.Reasons = append(res.Reasons, reason)
	}

	switch s := r.Systolic; {
	case s >= 180:
		note(RiskHigh, "Crisis Hipertensiva", "Presión sistólica muy elevada. Busque atención médica de inmediato.")
	case s >= 140:
		note(RiskHigh, "Hipertensión Grado 2", "Presión sistólica elevada.")
	case s >= 130:
		note(RiskMedium, "Hipertensión Grado 1", "Presión sistólica moderadamente elevada.")
	case s < 90:
		note(RiskMedium, "Hipotensión", "Presión sistólica baja.")
	}

	switch d := r.Diastolic; {
	case d >= 120 && res.Risk != RiskHigh:
		note(RiskHigh, "Crisis Hipertensiva", "Presión diastólica muy elevada. Busque atención médica de inmediato.")
	case d >= 90 && res.Risk != RiskHigh:
		note(RiskMedium, "Hipertensión", "Presión diastólica elevada.")
	case d < 60 && res.Risk == RiskLow:
		note(RiskMedium, "Hipotensión", "Presión diastólica baja.")
	}

	if res.Risk == RiskLow {
		switch hr := r.HeartRate; {
		case hr > 100:
			note(RiskMedium, "Taquicardia Leve", "Frecuencia cardíaca elevada en reposo.")
		case hr < 60:
			note(RiskMedium, "Bradicardia Leve", "Frecuencia cardíaca baja en reposo.")
		}
	}

	if len(res.Reasons) == 0 {
		res.Reasons = []string{"Sus valores se encuentran dentro del rango normal."}
	}
	return res
}
