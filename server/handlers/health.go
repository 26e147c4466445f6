package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Message string `json:"message"`
}

// HealthMessage is the fixed liveness reply.
const HealthMessage = "API is running!"

// Health reports that the process is serving. It does not contact the
// provider.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{Message: HealthMessage})
}
