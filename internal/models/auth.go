package models

import "github.com/golang-jwt/jwt/v5"

// TAClaims is the JWT payload identifying the TA behind a request.
type TAClaims struct {
	TAID  int64  `json:"ta_id"`
	Login string `json:"login"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// TokenResponse returns an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
