package model

// Credentials is the anti-bot clearance token and the client identity it was issued to.
// The two only make sense together and are always replaced as one value.
type Credentials struct {
	ClearanceToken string `json:"cf_clearance"`
	UserAgent      string `json:"user_agent"`
}

// Valid reports whether both halves are present.
func (c Credentials) Valid() bool {
	return c.ClearanceToken != "" && c.UserAgent != ""
}
