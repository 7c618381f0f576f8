package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type reviewRequest struct {
	Reason string `json:"reason" form:"reason"`
}

func (s *Server) adminListPayments(c *gin.Context) {
	payments, err := s.service.ListPayments(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (s *Server) adminApprovePayment(c *gin.Context) {
	payment, err := s.service.ApprovePayment(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) adminPaymentScreenshot(c *gin.Context) {
	payment, err := s.service.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if payment.ScreenshotRef == "" {
		s.fail(c, apperr.NotFound("payment %s has no screenshot", payment.ID))
		return
	}

	name := filepath.Base(payment.ScreenshotRef)
	path := filepath.Join(s.config.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.fail(c, apperr.NotFound("screenshot of payment %s is missing", payment.ID))
			return
		}
		s.fail(c, err)
		return
	}
	c.FileAttachment(path, "payment-"+payment.ID+filepath.Ext(name))
}

func (s *Server) adminRejectPayment(c *gin.Context) {
	var req reviewRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	payment, err := s.service.RejectPayment(c.Request.Context(), c.Param("id"), currentUser(c).ID, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) adminListWithdrawals(c *gin.Context) {
	withdrawals, err := s.service.ListWithdrawals(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawals)
}

func (s *Server) adminApproveWithdrawal(c *gin.Context) {
	withdrawal, err := s.service.ApproveWithdrawal(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

func (s *Server) adminRejectWithdrawal(c *gin.Context) {
	var req reviewRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	withdrawal, err := s.service.RejectWithdrawal(c.Request.Context(), c.Param("id"), currentUser(c).ID, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

func (s *Server) adminListUsers(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.service.ListUsers(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Page-Size", strconv.Itoa(result.PageSize))

	users := result.Users
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

type creditRequest struct {
	UserIdentifier string      `json:"user_identifier" form:"user_identifier"`
	Amount         json.Number `json:"amount" form:"amount"`
}

type creditFunc func(ctx context.Context, identifier string, amount decimal.Decimal, adminID string) (*service.CreditReceipt, error)

func (s *Server) adminCredit(c *gin.Context, credit creditFunc) {
	var req creditRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}

	receipt, err := credit(c.Request.Context(), req.UserIdentifier, amount, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) adminAddFunds(c *gin.Context) {
	s.adminCredit(c, s.service.AddFunds)
}

func (s *Server) adminAddProfit(c *gin.Context) {
	s.adminCredit(c, s.service.AddProfit)
}

func (s *Server) adminSetDisabled(disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.service.SetUserDisabled(c.Request.Context(), c.Param("id"), disabled, currentUser(c).ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func (s *Server) adminListPlans(c *gin.Context) {
	plans, err := s.service.ListAllPlans(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (s *Server) adminCreatePlan(c *gin.Context) {
	var in service.PlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, apperr.Validation("invalid plan: %v", err))
		return
	}

	plan, err := s.service.CreatePlan(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (s *Server) adminUpdatePlan(c *gin.Context) {
	var in service.PlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, apperr.Validation("invalid plan: %v", err))
		return
	}

	plan, err := s.service.UpdatePlan(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
