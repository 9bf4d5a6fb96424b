package models

//nolint:gosec //file not handles sensitive data
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"

	MwPrincipalKey = "principal"
)
