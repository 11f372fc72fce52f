package controllers

import (
	"encoding/json"
	"net/http"

	"mingle_server/utils"
)

// AuthController stands in for the identity collaborator in development:
// it issues bearer tokens for a given user id without verifying anything.
// Production deployments front this with the real login service.
type AuthController struct {
	Issuer *utils.TokenIssuer
}

func NewAuthController(issuer *utils.TokenIssuer) *AuthController {
	return &AuthController{Issuer: issuer}
}

// HandleIssueToken - issues a development bearer token
func (c *AuthController) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, utils.Validationf("invalid request body"))
		return
	}
	token, err := c.Issuer.Issue(request.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
