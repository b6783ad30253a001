package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	commissiondomain "github.com/smallbiznis/backoffice/internal/commission/domain"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
)

type tierPayload struct {
	FromAmount decimal.Decimal  `json:"from_amount"`
	ToAmount   *decimal.Decimal `json:"to_amount"`
	Rate       decimal.Decimal  `json:"rate"`
}

type scopePayload struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
}

type componentPayload struct {
	Code         string          `json:"code"`
	DisplayName  string          `json:"display_name"`
	Kind         string          `json:"kind"`
	DefaultValue decimal.Decimal `json:"default_value"`
	Currency     string          `json:"currency"`
	Sign         int16           `json:"sign"`
}

type saveRuleRequest struct {
	Name          string             `json:"name"`
	RuleType      string             `json:"rule_type"`
	Currency      string             `json:"currency"`
	FixedRate     *decimal.Decimal   `json:"fixed_rate"`
	IncludePrepay bool               `json:"include_prepay"`
	Tiers         []tierPayload      `json:"tiers"`
	Scopes        []scopePayload     `json:"scopes"`
	Components    []componentPayload `json:"components"`
}

func (r saveRuleRequest) toDomain() (commissiondomain.SaveRuleRequest, error) {
	out := commissiondomain.SaveRuleRequest{
		Name:          r.Name,
		RuleType:      r.RuleType,
		Currency:      r.Currency,
		IncludePrepay: r.IncludePrepay,
	}
	if r.FixedRate != nil {
		out.FixedRate = decimal.NewNullDecimal(*r.FixedRate)
	}
	for _, tier := range r.Tiers {
		in := commissiondomain.TierInput{
			FromAmount: tier.FromAmount,
			Rate:       tier.Rate,
		}
		if tier.ToAmount != nil {
			in.ToAmount = decimal.NewNullDecimal(*tier.ToAmount)
		}
		out.Tiers = append(out.Tiers, in)
	}
	for _, scope := range r.Scopes {
		targetID, err := parseSnowflakeID(scope.TargetID)
		if err != nil {
			return commissiondomain.SaveRuleRequest{}, err
		}
		out.Scopes = append(out.Scopes, commissiondomain.ScopeInput{
			Kind:     scope.Kind,
			TargetID: targetID,
		})
	}
	for _, component := range r.Components {
		out.Components = append(out.Components, commissiondomain.ComponentInput{
			Code:         component.Code,
			DisplayName:  component.DisplayName,
			Kind:         component.Kind,
			DefaultValue: component.DefaultValue,
			Currency:     component.Currency,
			Sign:         component.Sign,
		})
	}
	return out, nil
}

func (s *Server) CreateCommissionRule(c *gin.Context) {
	var req saveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	in, err := req.toDomain()
	if err != nil {
		AbortWithError(c, newValidationError("scopes", "invalid_target_id", "invalid scope target id"))
		return
	}

	rule, err := s.commissionSvc.CreateRule(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) UpdateCommissionRule(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_rule_id", "invalid rule id"))
		return
	}

	var req saveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	in, err := req.toDomain()
	if err != nil {
		AbortWithError(c, newValidationError("scopes", "invalid_target_id", "invalid scope target id"))
		return
	}

	rule, err := s.commissionSvc.UpdateRule(c.Request.Context(), id, in)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) DisableCommissionRule(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_rule_id", "invalid rule id"))
		return
	}

	if err := s.commissionSvc.DisableRule(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"disabled": true}})
}

func (s *Server) GetCommissionRule(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_rule_id", "invalid rule id"))
		return
	}

	rule, err := s.commissionSvc.GetRule(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) ListCommissionRules(c *gin.Context) {
	includeDisabled := strings.EqualFold(c.Query("include_disabled"), "true")
	rules, err := s.commissionSvc.ListRules(c.Request.Context(), includeDisabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (s *Server) CalculateCommission(c *gin.Context) {
	var query struct {
		UserID          string `form:"user_id"`
		Period          string `form:"period"`
		DisplayCurrency string `form:"display_currency"`
		RateMode        string `form:"rate_mode,default=fixed"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	payout, err := s.commissionSvc.Calculate(c.Request.Context(), commissiondomain.CalculateRequest{
		UserID:          userID,
		Period:          query.Period,
		DisplayCurrency: query.DisplayCurrency,
		RateMode:        currencydomain.RateMode(query.RateMode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payout})
}

type calculateBatchRequest struct {
	Period          string `json:"period"`
	DepartmentID    string `json:"department_id"`
	DisplayCurrency string `json:"display_currency"`
	RateMode        string `json:"rate_mode"`
}

func (s *Server) CalculateCommissionBatch(c *gin.Context) {
	var req calculateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	departmentID, err := parseOptionalSnowflakeID(req.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}
	mode := currencydomain.RateMode(req.RateMode)
	if req.RateMode == "" {
		mode = currencydomain.RateModeFixed
	}

	result, err := s.commissionSvc.CalculateAll(c.Request.Context(), req.Period, departmentID, req.DisplayCurrency, mode)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetCommissionPayout(c *gin.Context) {
	userID, err := parseSnowflakeID(c.Param("user"))
	if err != nil {
		AbortWithError(c, newValidationError("user", "invalid_user_id", "invalid user id"))
		return
	}

	payout, err := s.commissionSvc.GetPayout(c.Request.Context(), userID, c.Param("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payout})
}

type addAdjustmentRequest struct {
	UserID   string          `json:"user_id"`
	Month    string          `json:"month"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Note     string          `json:"note"`
}

func (s *Server) AddCommissionAdjustment(c *gin.Context) {
	var req addAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	adj, err := s.commissionSvc.AddAdjustment(c.Request.Context(), commissiondomain.AddAdjustmentRequest{
		UserID:   userID,
		Month:    req.Month,
		Amount:   req.Amount,
		Currency: req.Currency,
		Note:     req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": adj})
}
