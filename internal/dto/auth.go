package dto

// LoginRequest authenticates the single ledger owner.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the issued access token.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// GoogleAuthURLResponse is the consent URL for connecting Google Drive.
type GoogleAuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// GoogleExchangeCodeRequest completes the Google Drive consent flow.
type GoogleExchangeCodeRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// GoogleConnectionResponse reports which Google account is connected.
type GoogleConnectionResponse struct {
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
}
