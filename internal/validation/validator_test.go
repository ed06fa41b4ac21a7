package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climate-records/internal/models"
)

type sample struct {
	Name      string `json:"name" validate:"required"`
	Continent string `param:"continent" validate:"omitempty,continent"`
	Code      string `json:"iso_code,omitempty" validate:"omitempty,iso3166_1_alpha3"`
	Size      int    `param:"batch_size" validate:"omitempty,oneof=10 20"`
	Count     int    `validate:"min=0,max=5"`
	Label     string `validate:"omitempty,min=2"`
}

func TestGetValidatorIsSingleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name        string
		in          sample
		checkValues func(*testing.T, models.ValidationErrors)
	}{
		{
			name: "valid",
			in:   sample{Name: "France", Continent: "Europe", Code: "FRA", Size: 20, Count: 3},
		},
		{
			name: "required uses json name",
			in:   sample{},
			checkValues: func(t *testing.T, ve models.ValidationErrors) {
				assert.Equal(t, []string{"name"}, ve.Fields())
				assert.Equal(t, "name is required", ve[0].Message)
			},
		},
		{
			name: "unknown continent",
			in:   sample{Name: "x", Continent: "Atlantis"},
			checkValues: func(t *testing.T, ve models.ValidationErrors) {
				assert.Equal(t, []string{"continent"}, ve.Fields())
				assert.Equal(t, "Atlantis", ve[0].Value)
				assert.Contains(t, ve[0].Message, "invalid entry")
			},
		},
		{
			name: "bad iso code",
			in:   sample{Name: "x", Code: "ZZZ"},
			checkValues: func(t *testing.T, ve models.ValidationErrors) {
				assert.Equal(t, []string{"iso_code"}, ve.Fields())
				assert.Equal(t, "iso_code must be an ISO 3166-1 alpha-3 code", ve[0].Message)
			},
		},
		{
			name: "enum and range",
			in:   sample{Name: "x", Size: 15, Count: 9},
			checkValues: func(t *testing.T, ve models.ValidationErrors) {
				assert.Equal(t, []string{"batch_size", "Count"}, ve.Fields())
				assert.Equal(t, "batch_size must be one of: 10 20", ve[0].Message)
				assert.Equal(t, "Count must be at most 5", ve[1].Message)
			},
		},
		{
			name: "string length uses characters",
			in:   sample{Name: "x", Label: "a"},
			checkValues: func(t *testing.T, ve models.ValidationErrors) {
				require.Len(t, ve, 1)
				assert.Equal(t, "Label must be at least 2 characters", ve[0].Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.checkValues == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve models.ValidationErrors
			require.True(t, errors.As(err, &ve))
			tt.checkValues(t, ve)
		})
	}
}

type window struct {
	From int `validate:"min=0"`
	To   int `validate:"min=0"`
}

func TestRegisterStructValidation(t *testing.T) {
	RegisterStructValidation(func(sl validator.StructLevel) {
		w := sl.Current().Interface().(window)
		if w.To < w.From {
			sl.ReportError(w.To, "to", "To", "gte", "from")
		}
	}, window{})

	assert.NoError(t, ValidateStruct(window{From: 1, To: 2}))

	err := ValidateStruct(window{From: 5, To: 2})
	var ve models.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"to"}, ve.Fields())
	assert.Equal(t, "to must be greater than or equal to from", ve[0].Message)
}
