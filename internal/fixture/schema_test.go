package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	valid := []string{
		`{"callArgs": [{"val": 0}, null], "callbackArgs": [null, 1]}`,
		`{"callArgs": "pretty text", "returnValue": null}`,
		`{"callArgs": [], "returnedPromise": true, "promiseRejectionArgs": [{}], "rejectedWithError": {"message": "m", "stack": "s"}}`,
	}
	for _, doc := range valid {
		assert.NoError(t, v.Validate("valid.json", []byte(doc)), doc)
	}

	invalid := map[string]string{
		"missing callArgs":     `{"callbackArgs": []}`,
		"unknown field":        `{"callArgs": [], "callbackArg": []}`,
		"promise flag type":    `{"callArgs": [], "returnedPromise": "yes"}`,
		"descriptor shape":     `{"callArgs": [], "callbackArgs": [], "calledBackWithError": {"message": 1, "stack": ""}}`,
		"descriptor extra key": `{"callArgs": [], "callbackArgs": [], "calledBackWithError": {"message": "", "stack": "", "code": 1}}`,
		"not an object":        `[1, 2]`,
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, v.Validate("invalid.json", []byte(doc)))
		})
	}
}

func TestValidator_ReturnsSchemaError(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	err = v.Validate("fixture.json", []byte("{\n  \"callArgs\": [],\n  \"returnedPromise\": 3\n}"))
	require.Error(t, err)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.NotEmpty(t, se.Message)
}
