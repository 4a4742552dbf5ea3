package utils

import (
	"encoding/json"
	"math"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RoundCents rounds a euro amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// NearlyEqual reports whether two prices are equal within a cent.
func NearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}
