package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// InteractionRequest records a user action on a feed article.
type InteractionRequest struct {
	ArticleID    string `json:"article_id"`
	Type         string `json:"type"`
	ReadDuration int    `json:"read_duration_seconds,omitempty"`
}

// JobResponse acknowledges a manually triggered maintenance job.
type JobResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}
