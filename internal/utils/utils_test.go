package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNumber(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		num := GenerateOrderNumber()
		// Expected format: ORD-YYYYMMDD-HHMMSS-mmm-RRRR
		// Example: ORD-20231027-103000-123-4567

		assert.True(t, strings.HasPrefix(num, "ORD-"), "Should start with ORD-")

		parts := strings.Split(num, "-")
		if assert.Len(t, parts, 5, "Should have 5 parts separated by hyphens") {
			assert.Equal(t, "ORD", parts[0])
			assert.Len(t, parts[1], 8, "Date part YYYYMMDD should be 8 chars")
			assert.Len(t, parts[2], 6, "Time part HHMMSS should be 6 chars")
			assert.Len(t, parts[3], 3, "Milliseconds part should be 3 chars")
			assert.Len(t, parts[4], 4, "Random part should be 4 chars")
		}
	})

	t.Run("Uniqueness", func(t *testing.T) {
		num1 := GenerateOrderNumber()
		num2 := GenerateOrderNumber()
		assert.NotEqual(t, num1, num2, "Consecutive order numbers should be different")
	})
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 15.0, RoundCents(15.000000001))
	assert.Equal(t, 2.5, RoundCents(2.499999999))
	assert.Equal(t, 2.68, RoundCents(2.676))
}

func TestNearlyEqual(t *testing.T) {
	assert.True(t, NearlyEqual(1.0, 1.005))
	assert.True(t, NearlyEqual(1.0, 0.995))
	assert.False(t, NearlyEqual(1.0, 1.02))
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["id"])
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, "something broke", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "something broke", body["error"])
}
