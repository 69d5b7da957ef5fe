package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	upwerrs "github.com/jdholdren/upwatch/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := upwerrs.E(
		"something went wrong",
		upwerrs.Detail{Field: "url", Error: "was bad"},
		http.StatusBadRequest,
	)
	want := &upwerrs.Error{
		Err: errors.New("something went wrong"),
		Details: []upwerrs.Detail{
			{Field: "url", Error: "was bad"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestStatus(t *testing.T) {
	sentinel := errors.New("invalid feed")
	wrapped := fmt.Errorf("error adding: %w", upwerrs.E(sentinel, http.StatusUnprocessableEntity))

	assert.Equal(t, http.StatusUnprocessableEntity, upwerrs.Status(wrapped))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, http.StatusInternalServerError, upwerrs.Status(errors.New("plain")))
}

func TestMarshalJSON(t *testing.T) {
	byts, err := json.Marshal(upwerrs.E(http.StatusConflict))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Conflict", "details": null, "status": 409}`, string(byts))

	var back upwerrs.Error
	require.NoError(t, json.Unmarshal(byts, &back))
	assert.Equal(t, http.StatusConflict, back.Status)
	assert.EqualError(t, back.Err, "Conflict")
}
