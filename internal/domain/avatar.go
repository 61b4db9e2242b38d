package domain

// AvatarSession holds what the browser needs to attach to a live avatar
// stream, plus the session token the server needs to stop it later.
type AvatarSession struct {
	SessionID    string `json:"session_id"`
	URL          string `json:"url"`
	AccessToken  string `json:"access_token"`
	SessionToken string `json:"session_token"`
}
