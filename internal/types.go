package internal

// User is the authenticated requester as resolved by the auth middleware.
// Admin reflects the role at request time, not at token issue.
type User struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}
