package handlers

// DecisionRequest asks for an admission decision on behalf of another service.
type DecisionRequest struct {
	Body struct {
		Subject  string `doc:"Authenticated caller identity"   example:"user-42"      json:"subject,omitempty"  maxLength:"256"`
		ClientIP string `doc:"Network address of the caller"   example:"192.0.2.10"   json:"clientIp,omitempty" maxLength:"64"`
		Path     string `doc:"Route the caller wants to reach" example:"/v1/orders" json:"path,omitempty"     maxLength:"512"`
	}
}

// DecisionBody describes an admission decision.
type DecisionBody struct {
	Allowed      bool   `doc:"Whether the call may proceed"           json:"allowed"`
	Identity     string `doc:"Resolved rate limit identity"           example:"sub:user-42"  json:"identity"`
	Strategy     string `doc:"Active limiting algorithm"              example:"token_bucket" json:"strategy"`
	Limit        int64  `doc:"Window max or bucket capacity"          example:"100"          json:"limit"`
	Remaining    int64  `doc:"Calls left before the next reject"      example:"99"           json:"remaining"`
	ResetAfterMs int64  `doc:"Milliseconds until capacity is regained" example:"1000"        json:"resetAfterMs"`
}

// DecisionResponse is returned when the call is admitted.
type DecisionResponse struct {
	Headers struct {
		Limit     string `header:"X-RateLimit-Limit"`
		Remaining string `header:"X-RateLimit-Remaining"`
		Reset     string `header:"X-RateLimit-Reset"`
	}
	Body DecisionBody
}

// PingResponse is the response of the gated demo endpoint.
type PingResponse struct {
	Body struct {
		Message string `example:"pong" json:"message"`
	}
}
