package validation

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createInput struct {
	Name     string          `validate:"required,min=1,max=255,no_null_bytes"`
	Content  string          `validate:"required,no_null_bytes"`
	MetaData json.RawMessage `validate:"omitempty,json_object"`
}

type filterInput struct {
	UserID       *string `form:"user_id" validate:"omitempty,no_null_bytes"`
	DocumentType *string `form:"document_type" validate:"omitempty,no_null_bytes"`
	Limit        int     `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset       int     `form:"offset" validate:"omitempty,min=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid input passes", func(t *testing.T) {
		in := createInput{Name: "Grant Review - u1", Content: "solid proposal"}
		assert.NoError(t, ValidateStruct(in))
	})

	t.Run("missing required fields reported by name", func(t *testing.T) {
		err := ValidateStruct(createInput{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Name is required")
		assert.Contains(t, err.Error(), "Content is required")
	})

	t.Run("null bytes rejected", func(t *testing.T) {
		in := createInput{Name: "bad\x00name", Content: "ok"}
		err := ValidateStruct(in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not contain NULL bytes")
	})

	t.Run("json_object accepts objects", func(t *testing.T) {
		in := createInput{Name: "n", Content: "c", MetaData: json.RawMessage(`{"user_id":"u1"}`)}
		assert.NoError(t, ValidateStruct(in))
	})

	t.Run("json_object rejects arrays and scalars", func(t *testing.T) {
		for _, raw := range []string{`[1,2]`, `"text"`, `42`, `{broken`} {
			in := createInput{Name: "n", Content: "c", MetaData: json.RawMessage(raw)}
			err := ValidateStruct(in)
			require.Error(t, err, "payload %s should fail", raw)
			assert.Contains(t, err.Error(), "must be a JSON object")
		}
	})
}

func TestDecodeValues(t *testing.T) {
	t.Run("decodes filter values", func(t *testing.T) {
		values := url.Values{}
		values.Set("user_id", "u1")
		values.Set("limit", "25")

		var f filterInput
		require.NoError(t, ValidateAndDecodeValues(values, &f))
		require.NotNil(t, f.UserID)
		assert.Equal(t, "u1", *f.UserID)
		assert.Equal(t, 25, f.Limit)
		assert.Nil(t, f.DocumentType)
	})

	t.Run("validation runs after decode", func(t *testing.T) {
		values := url.Values{}
		values.Set("limit", "5000")

		var f filterInput
		err := ValidateAndDecodeValues(values, &f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Limit must be at most 1000")
	})

	t.Run("non-numeric limit is a decode error", func(t *testing.T) {
		values := url.Values{}
		values.Set("limit", "many")

		var f filterInput
		err := ValidateAndDecodeValues(values, &f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode values")
	})
}
