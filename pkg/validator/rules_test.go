package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflowhq/identity/pkg/validator"
)

func TestValidEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		ok    bool
	}{
		{"user@example.com", true},
		{"first.last@sub.example.co", true},
		{"", false},
		{"no-at-sign", false},
		{"user@localhost", false},
		{"user@.example.com", false},
		{"user@example..com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			t.Parallel()

			err := validator.Apply(validator.ValidEmail("email", tt.email))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("collects failures per field", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.MinLen("password", "short", 8),
			validator.ValidEmail("email", "bogus"),
		)
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Len(t, verrs, 2)
		assert.True(t, verrs.Has("password"))
		assert.True(t, verrs.Has("email"))
	})

	t.Run("nil on success", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, validator.Apply(
			validator.MinLen("password", "long enough", 8),
			validator.MaxLen("password", "long enough", 128),
		))
	})
}
