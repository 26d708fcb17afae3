package models

import "github.com/golang-jwt/jwt/v5"

// TokenTypeReporter marks tokens issued to services that report failures
const TokenTypeReporter = "reporter"

// ReporterClaims identifies a service allowed to report authentication failures
type ReporterClaims struct {
	Type       string `json:"type"`
	ReporterID string `json:"reporter_id"`
	jwt.RegisteredClaims
}
