package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type credentialsRequest struct {
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	ReferralCode string `json:"referral_code" form:"referral_code"`
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.service.Register(c.Request.Context(), req.Email, req.Password, req.ReferralCode)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) me(c *gin.Context) {
	profile, err := s.service.Me(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) listPlans(c *gin.Context) {
	plans, err := s.service.ListPlans(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (s *Server) billingAddresses(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.BillingAddresses())
}

func (s *Server) activeSubscription(c *gin.Context) {
	sub, err := s.service.GetActiveSubscription(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub, "plan": sub.Plan})
}

type startCycleRequest struct {
	InitialBalance json.Number `json:"initial_balance" form:"initial_balance"`
}

func (s *Server) startCycle(c *gin.Context) {
	var req startCycleRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	balance, err := parseAmount("initial_balance", req.InitialBalance)
	if err != nil {
		s.fail(c, err)
		return
	}

	cycle, err := s.service.IssueCycle(c.Request.Context(), currentUser(c).ID, balance)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycle)
}

func (s *Server) myCycles(c *gin.Context) {
	cycles, err := s.service.ListCycles(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycles)
}

var screenshotExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true, ".pdf": true,
}

// submitPayment takes the multipart form posted by the billing page. The
// screenshot is stored under UPLOAD_DIR and removed again if the submission
// is refused.
func (s *Server) submitPayment(c *gin.Context) {
	limit := s.config.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	header, err := c.FormFile("screenshot")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, apperr.Validation("screenshot exceeds %d bytes", limit))
			return
		}
		s.fail(c, apperr.Validation("screenshot is required"))
		return
	}
	if header.Size > limit {
		s.fail(c, apperr.Validation("screenshot exceeds %d bytes", limit))
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !screenshotExtensions[ext] {
		s.fail(c, apperr.Validation("screenshot must be an image or pdf"))
		return
	}

	amount, err := parseAmount("amount_usd", json.Number(strings.TrimSpace(c.PostForm("amount_usd"))))
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		s.fail(c, err)
		return
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.config.UploadDir, name)
	if err := c.SaveUploadedFile(header, path); err != nil {
		s.fail(c, err)
		return
	}

	payment, err := s.service.SubmitPayment(c.Request.Context(), service.SubmitPaymentInput{
		UserID:        currentUser(c).ID,
		PlanID:        c.PostForm("plan_id"),
		Currency:      c.PostForm("currency"),
		AmountUSD:     amount,
		TxHash:        c.PostForm("tx_hash"),
		ScreenshotRef: name,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warnf("Failed to remove screenshot %s: %v", path, rmErr)
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (s *Server) myPayments(c *gin.Context) {
	payments, err := s.service.ListMyPayments(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (s *Server) myHistory(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}

	events, err := s.service.ListHistory(c.Request.Context(), currentUser(c).ID, service.HistoryQuery{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type withdrawalRequest struct {
	Amount        json.Number `json:"amount" form:"amount"`
	CryptoType    string      `json:"crypto_type" form:"crypto_type"`
	CryptoAddress string      `json:"crypto_address" form:"crypto_address"`
}

func (s *Server) requestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}

	withdrawal, err := s.service.RequestWithdrawal(c.Request.Context(), currentUser(c).ID, amount, req.CryptoType, req.CryptoAddress)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawal)
}

func (s *Server) myWithdrawals(c *gin.Context) {
	withdrawals, err := s.service.ListMyWithdrawals(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawals)
}
