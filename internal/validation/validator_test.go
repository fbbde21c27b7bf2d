package validation_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/validation"
)

type testBook struct {
	Title string `json:"title" validate:"required,max=10"`
	ISBN  string `json:"isbn" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(testBook{Title: "Short", ISBN: "001"}))
	assert.NoError(t, v.Validate(testBook{Title: "Short", ISBN: "001", Email: "a@b.co"}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       testBook
		wantField string
		wantMsg   string
	}{
		{"missing isbn", testBook{Title: "T"}, "isbn", "is required"},
		{"title too long", testBook{Title: strings.Repeat("x", 11), ISBN: "1"}, "title", "must not exceed 10 characters"},
		{"bad email", testBook{Title: "T", ISBN: "1", Email: "nope"}, "email", "must be a valid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrInvalidArgument))

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
			assert.Contains(t, domainErr.Message, tt.wantField)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(testBook{})
	require.Error(t, err)

	assert.Equal(t, "validation failed: isbn is required; title is required", err.Error())
	assert.NotContains(t, err.Error(), "Title")
}
