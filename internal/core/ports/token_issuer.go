package ports

// TokenIssuer creates and verifies the two signed bearer tokens of a session.
// Access and refresh tokens are signed with separate secrets so a leak of one
// cannot forge the other.
type TokenIssuer interface {
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
	// VerifyAccess and VerifyRefresh return the subject user id, or
	// domain.ErrTokenExpired / domain.ErrTokenInvalid.
	VerifyAccess(token string) (string, error)
	VerifyRefresh(token string) (string, error)
}
