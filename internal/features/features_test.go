package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bostonSample() map[string]string {
	return map[string]string{
		"CRIM": "0.00632", "ZN": "18", "INDUS": "2.31", "CHAS": "0",
		"NOX": "0.538", "RM": "6.575", "Age": "65.2", "DIS": "4.09",
		"RAD": "1", "TAX": "296", "PTRATIO": "15.3", "B": "396.9", "LSTAT": "4.98",
	}
}

func TestNames(t *testing.T) {
	names := Names()
	require.Len(t, names, Count)
	assert.Equal(t, "CRIM", names[0])
	assert.Equal(t, "LSTAT", names[Count-1])

	// Callers cannot mutate the canonical order.
	names[0] = "changed"
	assert.Equal(t, "CRIM", Names()[0])
}

func TestParse_WellFormed(t *testing.T) {
	v, err := Parse(bostonSample(), PolicyCoerce)
	require.NoError(t, err)
	assert.Equal(t, 0.00632, v.CRIM)
	assert.Equal(t, 6.575, v.RM)
	assert.Equal(t, 65.2, v.Age)
	assert.Equal(t, 4.98, v.LSTAT)

	strict, err := Parse(bostonSample(), PolicyReject)
	require.NoError(t, err)
	assert.Equal(t, v, strict)
}

func TestParse_CoerceMalformedToZero(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"letters", "abc"},
		{"nan", "NaN"},
		{"infinity", "Inf"},
		{"negative infinity", "-Inf"},
		{"overflow", "1e999"},
		{"negative zero", "-0"},
		{"sign only", "-"},
		{"bare dot", "."},
		{"hex", "0x10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := bostonSample()
			raw["TAX"] = tt.input
			v, err := Parse(raw, PolicyCoerce)
			require.NoError(t, err)
			assert.Equal(t, 0.0, v.TAX)
			assert.Equal(t, 18.0, v.ZN, "other fields are untouched")
		})
	}
}

func TestParse_CoerceKeepsLeadingNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"12abc", 12},
		{"1,200", 1},
		{"3.5 rooms", 3.5},
		{"  42  ", 42},
		{"5.", 5},
		{".5e1x", 5},
		{"1e", 1},
		{"2e+", 2},
		{"-2.5e-1kg", -0.25},
		{"+7", 7},
		{"1.2.3", 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			raw := bostonSample()
			raw["RM"] = tt.input
			v, err := Parse(raw, PolicyCoerce)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.RM)
		})
	}
}

func TestParse_RejectRefusesNumericPrefix(t *testing.T) {
	for _, input := range []string{"12abc", "1,200", "3.5 rooms", "1e"} {
		t.Run(input, func(t *testing.T) {
			raw := bostonSample()
			raw["RM"] = input
			_, err := Parse(raw, PolicyReject)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, []string{"RM"}, verr.Fields)
		})
	}
}

func TestParse_AbsentFieldsAreZero(t *testing.T) {
	v, err := Parse(map[string]string{"RM": " 7.1 "}, PolicyCoerce)
	require.NoError(t, err)
	assert.Equal(t, 7.1, v.RM)
	for _, name := range Names() {
		if name == RM {
			continue
		}
		got, ok := v.Get(name)
		require.True(t, ok)
		assert.Zero(t, got, name)
	}
}

func TestParse_RejectListsEveryBadField(t *testing.T) {
	raw := bostonSample()
	raw["NOX"] = "n/a"
	delete(raw, "B")

	_, err := Parse(raw, PolicyReject)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFeature))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"NOX", "B"}, verr.Fields)
	assert.Contains(t, err.Error(), "NOX, B")
}

func TestParse_IgnoresUnknownKeys(t *testing.T) {
	raw := bostonSample()
	raw["MEDV"] = "24"
	_, err := Parse(raw, PolicyReject)
	assert.NoError(t, err)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"", PolicyCoerce, false},
		{"coerce", PolicyCoerce, false},
		{"REJECT", PolicyReject, false},
		{" reject ", PolicyReject, false},
		{"strict", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeatureVector_MapAndValues(t *testing.T) {
	v, err := Parse(bostonSample(), PolicyCoerce)
	require.NoError(t, err)

	m := v.Map()
	assert.Len(t, m, Count)
	assert.Equal(t, 296.0, m["TAX"])
	assert.Equal(t, 396.9, m["B"])

	values := v.Values()
	require.Len(t, values, Count)
	for i, name := range Names() {
		assert.Equal(t, m[name], values[i], name)
	}
}

func TestFeatureVector_ValidateAndSanitize(t *testing.T) {
	v := FeatureVector{RM: math.NaN(), TAX: math.Inf(1), LSTAT: 4.98}
	err := v.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"RM", "TAX"}, verr.Fields)

	clean := v.Sanitize()
	assert.NoError(t, clean.Validate())
	assert.Zero(t, clean.RM)
	assert.Zero(t, clean.TAX)
	assert.Equal(t, 4.98, clean.LSTAT)
}

func TestSetAndDescribe(t *testing.T) {
	var v FeatureVector
	assert.True(t, v.Set("PTRATIO", 15.3))
	assert.False(t, v.Set("MEDV", 1))
	assert.Equal(t, 15.3, v.PTRATIO)

	assert.True(t, Known("Age"))
	assert.False(t, Known("AGE"))
	assert.Equal(t, "Pupil-teacher ratio", Describe("PTRATIO"))
	assert.Equal(t, "MEDV", Describe("MEDV"))
}
