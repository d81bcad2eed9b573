package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canhamzacode/tipjar/internal/directory"
	"github.com/canhamzacode/tipjar/internal/models"
)

// LinkAccountRequest represents the JSON body posted by the OAuth callback
// once the provider has confirmed the user's identity.
type LinkAccountRequest struct {
	TwitterID       string `json:"twitter_id" binding:"required"`
	Handle          string `json:"handle" binding:"required"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url"`
	Description     string `json:"description"`
	AccessToken     string `json:"access_token" binding:"required"`
	RefreshToken    string `json:"refresh_token"`
}

// LinkAccountResponse carries the session token and reconciliation outcome.
type LinkAccountResponse struct {
	Success        bool         `json:"success"`
	Token          string       `json:"token"`
	User           *models.User `json:"user"`
	ReconciledTips int          `json:"reconciled_tips"`
}

// TransferRequestBody represents the JSON body for initiating a transfer.
type TransferRequestBody struct {
	ReceiverHandle string `json:"receiver_handle" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Token          string `json:"token"`
	Note           string `json:"note"`
}

// CompleteRequest represents the JSON body for submitting signed bytes.
type CompleteRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	SignedBytes   string `json:"signed_bytes" binding:"required"`
}

// ConnectWalletRequest represents the JSON body for connecting a wallet.
type ConnectWalletRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	WalletType    string `json:"wallet_type" binding:"omitempty,oneof=custodial non-custodial"`
}

// writeError maps the service error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	var (
		verr *models.ValidationError
		nerr *models.NotFoundError
		aerr *models.AuthorizationError
		cerr *models.ConflictError
		eerr *models.ExternalServiceError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Msg})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": nerr.Error()})
	case errors.As(err, &aerr):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": aerr.Msg})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": cerr.Msg})
	case errors.As(err, &eerr):
		s.logger.Error("Upstream service failure from ", eerr.Service, ": ", eerr.Err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": eerr.Error()})
	default:
		s.logger.Error("Unhandled error: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}

// healthz is the liveness probe.
func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// linkAccount is a handler for the /auth/link endpoint. It upserts the user
// from the confirmed social identity, issues a session token and reconciles
// any tips that were waiting for this handle.
func (s *HTTPServer) linkAccount(c *gin.Context) {
	var req LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body: ", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	user, err := s.directory.LinkAccount(c.Request.Context(), directory.Profile{
		TwitterID:       req.TwitterID,
		Handle:          req.Handle,
		Name:            req.Name,
		ProfileImageURL: req.ProfileImageURL,
		Description:     req.Description,
		AccessToken:     req.AccessToken,
		RefreshToken:    req.RefreshToken,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	// Tips sent to this handle before the account existed can be paid out
	// now. A reconciliation failure must not block the login.
	reconciled, err := s.transfers.Reconcile(c.Request.Context(), user.TwitterHandle, user.ID)
	if err != nil {
		s.logger.Error("Reconciliation after account link failed for @", user.TwitterHandle, ": ", err)
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("Account linked: @", user.TwitterHandle, ", reconciled ", reconciled, " tips")
	c.JSON(http.StatusOK, LinkAccountResponse{
		Success:        true,
		Token:          token,
		User:           user,
		ReconciledTips: reconciled,
	})
}

// initiateTransfer is a handler for the /transfer endpoint. The dashboard
// path requires the sender to have a connected wallet before anything is
// recorded.
func (s *HTTPServer) initiateTransfer(c *gin.Context) {
	var req TransferRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body: ", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	userID := currentUserID(c)
	sender, err := s.directory.ByID(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !sender.HasWallet() {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Connect a wallet before sending tips",
		})
		return
	}

	result, err := s.transfers.Initiate(c.Request.Context(), models.TransferRequest{
		SenderID:       userID,
		ReceiverHandle: req.ReceiverHandle,
		Amount:         req.Amount,
		Token:          req.Token,
		Note:           req.Note,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	response := gin.H{
		"success": true,
		"result":  result,
	}
	if result.Type == models.TransferPathDirect {
		// Attach the signable payload so the client can sign in one round
		// trip.
		if record, unsigned, err := s.transfers.Describe(c.Request.Context(), userID, result.TransactionID); err == nil {
			response["transaction"] = record
			if unsigned != nil {
				response["unsigned"] = unsigned
			}
		}
	}

	c.JSON(http.StatusCreated, response)
}

// completeTransfer is a handler for the /transfer/complete endpoint.
func (s *HTTPServer) completeTransfer(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body: ", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	tx, err := s.transfers.Complete(c.Request.Context(), currentUserID(c), req.TransactionID, req.SignedBytes)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transaction": tx,
	})
}

// getTransfer is a handler for the /transfer/:id endpoint. Pending
// transactions carry a freshly rebuilt unsigned payload when both wallets
// are connected.
func (s *HTTPServer) getTransfer(c *gin.Context) {
	tx, unsigned, err := s.transfers.Describe(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	response := gin.H{
		"success":     true,
		"transaction": tx,
	}
	if unsigned != nil {
		response["unsigned"] = unsigned
	}
	c.JSON(http.StatusOK, response)
}

// connectWallet is a handler for the /wallet/connect endpoint.
func (s *HTTPServer) connectWallet(c *gin.Context) {
	var req ConnectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body: ", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := s.ledger.ValidateAccountID(req.WalletAddress); err != nil {
		s.writeError(c, err)
		return
	}

	user, err := s.directory.ConnectWallet(c.Request.Context(), currentUserID(c),
		req.WalletAddress, models.WalletType(req.WalletType))
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("Wallet connected for user ", user.ID, ": ", req.WalletAddress)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// listTransactions is a handler for the /transactions endpoint.
func (s *HTTPServer) listTransactions(c *gin.Context) {
	entries, err := s.transfers.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": entries,
	})
}
