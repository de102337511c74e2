package handlers

import "context"

// Ping answers the gated demo endpoint.
func Ping(_ context.Context, _ *struct{}) (*PingResponse, error) {
	resp := &PingResponse{}
	resp.Body.Message = "pong"

	return resp, nil
}
