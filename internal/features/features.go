// Package features defines the thirteen-value housing feature vector sent to
// the regression service and the policy used to normalize user input.
package features

import "math"

// Canonical feature names in the order the regression service expects them.
const (
	CRIM    = "CRIM"
	ZN      = "ZN"
	INDUS   = "INDUS"
	CHAS    = "CHAS"
	NOX     = "NOX"
	RM      = "RM"
	Age     = "Age"
	DIS     = "DIS"
	RAD     = "RAD"
	TAX     = "TAX"
	PTRATIO = "PTRATIO"
	B       = "B"
	LSTAT   = "LSTAT"
)

// Count is the number of fields in a FeatureVector.
const Count = 13

var order = [Count]string{CRIM, ZN, INDUS, CHAS, NOX, RM, Age, DIS, RAD, TAX, PTRATIO, B, LSTAT}

var labels = map[string]string{
	CRIM:    "Per-capita crime rate",
	ZN:      "Residential land zoned for large lots (%)",
	INDUS:   "Non-retail business acres (%)",
	CHAS:    "Borders the river (1 = yes, 0 = no)",
	NOX:     "Nitric oxide concentration (ppm)",
	RM:      "Average rooms per dwelling",
	Age:     "Owner units built before 1940 (%)",
	DIS:     "Weighted distance to employment centres",
	RAD:     "Radial highway accessibility index",
	TAX:     "Property tax rate per $10,000",
	PTRATIO: "Pupil-teacher ratio",
	B:       "Demographic index",
	LSTAT:   "Lower-status population (%)",
}

// FeatureVector is the ordered numeric input to the regression service.
type FeatureVector struct {
	CRIM    float64
	ZN      float64
	INDUS   float64
	CHAS    float64
	NOX     float64
	RM      float64
	Age     float64
	DIS     float64
	RAD     float64
	TAX     float64
	PTRATIO float64
	B       float64
	LSTAT   float64
}

// Names returns the canonical field names in submission order.
func Names() []string {
	out := make([]string, Count)
	copy(out, order[:])
	return out
}

// Describe returns the human-readable label for a feature name.
// Unknown names are returned unchanged.
func Describe(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// Known reports whether name is one of the thirteen canonical features.
func Known(name string) bool {
	_, ok := labels[name]
	return ok
}

func (v *FeatureVector) fields() [Count]*float64 {
	return [Count]*float64{
		&v.CRIM, &v.ZN, &v.INDUS, &v.CHAS, &v.NOX, &v.RM, &v.Age,
		&v.DIS, &v.RAD, &v.TAX, &v.PTRATIO, &v.B, &v.LSTAT,
	}
}

// Values returns the fields in canonical order.
func (v FeatureVector) Values() []float64 {
	ptrs := v.fields()
	out := make([]float64, Count)
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Map returns the request mapping keyed by canonical name.
func (v FeatureVector) Map() map[string]float64 {
	ptrs := v.fields()
	out := make(map[string]float64, Count)
	for i, p := range ptrs {
		out[order[i]] = *p
	}
	return out
}

// Get returns the value of a named feature.
func (v FeatureVector) Get(name string) (float64, bool) {
	ptrs := v.fields()
	for i, n := range order {
		if n == name {
			return *ptrs[i], true
		}
	}
	return 0, false
}

// Set assigns a named feature. It returns false for unknown names.
func (v *FeatureVector) Set(name string, value float64) bool {
	ptrs := v.fields()
	for i, n := range order {
		if n == name {
			*ptrs[i] = value
			return true
		}
	}
	return false
}

// Validate checks that every field is a finite real number.
func (v FeatureVector) Validate() error {
	var bad []string
	ptrs := v.fields()
	for i, p := range ptrs {
		if !finite(*p) {
			bad = append(bad, order[i])
		}
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// Sanitize returns a copy with every non-finite field replaced by 0.
func (v FeatureVector) Sanitize() FeatureVector {
	out := v
	ptrs := out.fields()
	for _, p := range ptrs {
		if !finite(*p) {
			*p = 0
		}
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
