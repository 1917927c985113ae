package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/service"
)

// Handlers contains HTTP handlers for the auth and payment endpoints
type Handlers struct {
	authService    *service.AuthService
	paymentService *service.PaymentService
}

// NewHandlers creates new handlers
func NewHandlers(authService *service.AuthService, paymentService *service.PaymentService) *Handlers {
	return &Handlers{
		authService:    authService,
		paymentService: paymentService,
	}
}

// Nonce handles the nonce request
func (h *Handlers) Nonce(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.authService.CreateNonce(c.Request.Context(), req.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": challenge.Nonce})
}

// Verify handles the login verification request
func (h *Handlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	signature, err := base58.Decode(req.Signature)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	session, err := h.authService.VerifyLogin(c.Request.Context(), req.Address, req.Nonce, signature)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Authentication failed"

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrNonceConsumed):
			statusCode = http.StatusConflict
			errorMsg = "Nonce unknown or already used"
		case errors.Is(err, core.ErrNonceExpired):
			statusCode = http.StatusGone
			errorMsg = "Nonce expired"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         session.User,
		"access_token": session.AccessToken,
		"expires_in":   int(session.ExpiresAt.Sub(session.IssuedAt).Seconds()),
	})
}

// Logout handles session logout. The auth middleware has already validated
// the token and stored it in the context.
func (h *Handlers) Logout(c *gin.Context) {
	token, exists := c.Get("accessToken")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token not found in context"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token.(string)); err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			// Expired tokens can't be replayed anyway
			c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Build handles the transaction build request
func (h *Handlers) Build(c *gin.Context) {
	var req struct {
		ID          string `json:"id" binding:"required"`
		Kind        string `json:"type" binding:"required"`
		Signer      string `json:"signer" binding:"required"`
		Recipient   string `json:"recipient"`
		Amount      string `json:"amount" binding:"required"`
		Mint        string `json:"mint"`
		Decimals    int    `json:"decimals"`
		SourceMint  string `json:"sourceMint"`
		DestMint    string `json:"destMint"`
		SlippageBps int    `json:"slippageBps"`
		Priority    string `json:"priority"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	intent := core.PaymentIntent{
		ID:          req.ID,
		Kind:        core.IntentKind(req.Kind),
		Signer:      req.Signer,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Mint:        req.Mint,
		Decimals:    req.Decimals,
		SourceMint:  req.SourceMint,
		DestMint:    req.DestMint,
		SlippageBps: req.SlippageBps,
		Priority:    core.PriorityTier(req.Priority),
	}

	unsigned, err := h.paymentService.BuildTransaction(c.Request.Context(), intent)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to build transaction"

		switch {
		case errors.Is(err, core.ErrInvalidIntent):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid payment intent"
		case errors.Is(err, core.ErrBuildFailed):
			statusCode = http.StatusUnprocessableEntity
			errorMsg = "Transaction build failed"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": unsigned.Base64})
}

// Send handles the transaction submission request
func (h *Handlers) Send(c *gin.Context) {
	var req struct {
		Transaction string `json:"transaction" binding:"required"`
		UserID      string `json:"userId"`
		CourseID    string `json:"courseId"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	signature, err := h.paymentService.SendTransaction(c.Request.Context(),
		core.SignedTransaction{Base64: req.Transaction},
		core.PaymentReference{UserID: req.UserID, CourseID: req.CourseID},
	)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to submit transaction"

		switch {
		case errors.Is(err, core.ErrInvalidInput):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid transaction payload"
		case errors.Is(err, core.ErrSubmissionFailed):
			statusCode = http.StatusBadGateway
			errorMsg = "Transaction submission failed"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// Balances reports SOL and registry token balances for a wallet
func (h *Handlers) Balances(c *gin.Context) {
	address := c.Query("user")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user parameter"})
		return
	}

	balances, err := h.paymentService.Balances(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch balances"})
		return
	}

	c.JSON(http.StatusOK, balances)
}

// Me returns information about the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	// User address is set by the auth middleware
	address, exists := c.Get("userAddress")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address})
}
