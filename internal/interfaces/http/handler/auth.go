package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medistore/backend/internal/application/identity"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
)

// AuthHandler handles identity-provider HTTP requests
type AuthHandler struct {
	BaseHandler
	authService AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignUp godoc
// @Summary      Email sign-up
// @Description  Create an account with email and password and sign it in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignUpRequest true "Credentials"
// @Success      201 {object} dto.Response{data=AuthResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.authService.SignUp(c.Request.Context(), identity.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.setSessionCookie(c, result)
	h.Created(c, newAuthResponse(result))
}

// Login godoc
// @Summary      Email sign-in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} dto.Response{data=AuthResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.authService.SignIn(c.Request.Context(), identity.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.setSessionCookie(c, result)
	h.Success(c, newAuthResponse(result))
}

// OAuth godoc
// @Summary      Federated sign-in
// @Description  Exchange a provider credential (Google ID token) for a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        provider path string true "Provider name" Enums(google)
// @Param        request body OAuthRequest true "Provider credential"
// @Success      200 {object} dto.Response{data=AuthResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/oauth/{provider} [post]
func (h *AuthHandler) OAuth(c *gin.Context) {
	var req OAuthRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.authService.SignInWithOAuth(c.Request.Context(), identity.OAuthInput{
		Provider:   c.Param("provider"),
		Credential: req.Credential,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.setSessionCookie(c, result)
	h.Success(c, newAuthResponse(result))
}

// PhoneVerifier godoc
// @Summary      Issue a phone verifier token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Description  Trade a solved reCAPTCHA or hCaptcha challenge for a single-use token
// @Param        request body PhoneVerifierRequest true "Phone number and challenge response"
// @Success      200 {object} dto.Response{data=VerifierResponse}
// @Router       /auth/phone/verifier [post]
func (h *AuthHandler) PhoneVerifier(c *gin.Context) {
	var req PhoneVerifierRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.authService.IssuePhoneVerifier(c.Request.Context(), identity.PhoneVerifierInput{
		Phone:             req.Phone,
		ChallengeResponse: req.ChallengeResponse,
		RemoteIP:          c.ClientIP(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, VerifierResponse{VerifierToken: result.Token, ExpiresAt: result.ExpiresAt})
}

// PhoneStart godoc
// @Summary      Start phone sign-in
// @Description  Send a one-time code to the phone; requires a verifier token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body PhoneStartRequest true "Phone and verifier"
// @Success      200 {object} dto.Response{data=PhoneStartResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/phone/start [post]
func (h *AuthHandler) PhoneStart(c *gin.Context) {
	var req PhoneStartRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.authService.StartPhoneSignIn(c.Request.Context(), identity.PhoneStartInput{
		Phone:         req.Phone,
		VerifierToken: req.VerifierToken,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PhoneStartResponse{ConfirmationID: result.ConfirmationID, ExpiresAt: result.ExpiresAt})
}

// PhoneConfirm godoc
// @Summary      Confirm phone sign-in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body PhoneConfirmRequest true "Confirmation"
// @Success      200 {object} dto.Response{data=AuthResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/phone/confirm [post]
func (h *AuthHandler) PhoneConfirm(c *gin.Context) {
	var req PhoneConfirmRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.authService.ConfirmPhoneSignIn(c.Request.Context(), identity.PhoneConfirmInput{
		ConfirmationID: req.ConfirmationID,
		Code:           req.Code,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.setSessionCookie(c, result)
	h.Success(c, newAuthResponse(result))
}

// Refresh godoc
// @Summary      Refresh tokens
// @Description  Rotate the token pair; the presented refresh token is revoked
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshTokenRequest true "Refresh token"
// @Success      200 {object} dto.Response{data=RefreshTokenResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshTokenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RefreshTokenResponse{Token: pair})
}

// Logout godoc
// @Summary      Sign out
// @Description  Revoke the access token and, when given, the refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LogoutRequest false "Refresh token"
// @Success      200 {object} dto.Response{data=LogoutResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	// the body is optional
	var req LogoutRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}
	if err := h.authService.SignOut(c.Request.Context(), identity.SignOutInput{
		Claims:       claims,
		RefreshToken: req.RefreshToken,
	}); err != nil {
		h.HandleError(c, err)
		return
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	h.Success(c, LogoutResponse{Message: "Signed out"})
}

// LogoutAll godoc
// @Summary      Sign out everywhere
// @Description  Revoke every token issued to the caller and end all of their sessions
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=LogoutResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	if err := h.authService.SignOutEverywhere(c.Request.Context(), claims); err != nil {
		h.HandleError(c, err)
		return
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	h.Success(c, LogoutResponse{Message: "Signed out of all sessions"})
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=session.User}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// UpdateProfile godoc
// @Summary      Update display name or photo
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body UpdateProfileRequest true "Fields to change"
// @Success      200 {object} dto.Response{data=session.User}
// @Security     BearerAuth
// @Router       /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !h.BindJSON(c, &req) {
		return
	}
	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, identity.UpdateProfileInput{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// setSessionCookie lets page navigations carry the access token
func (h *AuthHandler) setSessionCookie(c *gin.Context, result *identity.AuthResult) {
	if result.Tokens == nil {
		return
	}
	maxAge := int(time.Until(result.Tokens.AccessTokenExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, result.Tokens.AccessToken, maxAge, "/", "", c.Request.TLS != nil, true)
}
