package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Name  string  `validate:"required"`
	Age   int     `validate:"required,gte=0,lte=150"`
	Price float64 `json:"monthlyPrice,omitempty" validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := TestStruct{
			Name: "John Doe",
			Age:  30,
		}

		err := ValidateStruct(&s)
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		s := TestStruct{
			Age: 30,
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Name")
	})

	t.Run("age out of range", func(t *testing.T) {
		s := TestStruct{
			Name: "John Doe",
			Age:  200,
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "Age must be less than or equal to 150", fields["Age"])
	})

	t.Run("fields are reported by json name", func(t *testing.T) {
		s := TestStruct{
			Name:  "John Doe",
			Age:   30,
			Price: -1,
		}

		err := ValidateStruct(&s)
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "monthlyPrice")
		assert.NotContains(t, fields, "Price")
	})
}

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{name: "valid UUID", input: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "surrounding spaces", input: " 550e8400-e29b-41d4-a716-446655440000 "},
		{name: "invalid UUID - wrong format", input: "not-a-uuid", wantError: true},
		{name: "empty string", input: "", wantError: true},
		{name: "invalid UUID - missing parts", input: "550e8400-e29b-41d4", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseUUID(tt.input, "id")
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "id must be a valid UUID")
				assert.Equal(t, uuid.Nil, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
		})
	}
}

func TestNewValidationError(t *testing.T) {
	t.Run("creates validation error with field details", func(t *testing.T) {
		s := TestStruct{
			Age: 200,
		}

		err := ValidateStruct(&s)
		require.Error(t, err)

		validationErr, ok := err.(*ValidationError)
		require.True(t, ok)

		assert.Equal(t, "Validation failed", validationErr.Message)
		assert.Contains(t, validationErr.Fields, "Name")
		assert.Contains(t, validationErr.Fields, "Age")
	})
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "Test validation error",
		Fields: map[string]string{
			"field1": "error1",
		},
	}

	assert.Equal(t, "Test validation error", err.Error())
}

func TestIsValidationError(t *testing.T) {
	t.Run("is validation error", func(t *testing.T) {
		err := &ValidationError{
			Message: "test",
			Fields:  map[string]string{},
		}

		assert.True(t, IsValidationError(err))
	})

	t.Run("is not validation error", func(t *testing.T) {
		assert.False(t, IsValidationError(assert.AnError))
	})
}

func TestGetValidationFields(t *testing.T) {
	t.Run("gets fields from validation error", func(t *testing.T) {
		fields := map[string]string{
			"field1": "error1",
			"field2": "error2",
		}
		err := &ValidationError{
			Message: "test",
			Fields:  fields,
		}

		assert.Equal(t, fields, GetValidationFields(err))
	})

	t.Run("returns nil for non-validation error", func(t *testing.T) {
		assert.Nil(t, GetValidationFields(assert.AnError))
	})
}
