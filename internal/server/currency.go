package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
)

func (s *Server) ListCurrencies(c *gin.Context) {
	currencies, err := s.currencySvc.ListCurrencies(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": currencies})
}

type upsertCurrencyRequest struct {
	Name         string          `json:"name"`
	FixedRate    decimal.Decimal `json:"fixed_rate"`
	FloatingRate decimal.Decimal `json:"floating_rate"`
}

func (s *Server) UpsertCurrency(c *gin.Context) {
	var req upsertCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	out := currencydomain.UpsertCurrencyRequest{
		Code: c.Param("code"),
		Name: strings.TrimSpace(req.Name),
	}
	if !req.FixedRate.IsZero() {
		out.FixedRate = decimal.NewNullDecimal(req.FixedRate)
	}
	if !req.FloatingRate.IsZero() {
		out.FloatingRate = decimal.NewNullDecimal(req.FloatingRate)
	}

	resp, err := s.currencySvc.UpsertCurrency(c.Request.Context(), out)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type syncRatesRequest struct {
	Rates []struct {
		Code     string          `json:"code"`
		RateDate string          `json:"rate_date"`
		Rate     decimal.Decimal `json:"rate"`
	} `json:"rates"`
}

func (s *Server) SyncFloatingRates(c *gin.Context) {
	var req syncRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Rates) == 0 {
		AbortWithError(c, newValidationError("rates", "required", "rates is required"))
		return
	}

	rates := make([]currencydomain.UpsertRateRequest, 0, len(req.Rates))
	for _, in := range req.Rates {
		rateDate, err := parseOptionalDate(in.RateDate)
		if err != nil || rateDate.IsZero() {
			AbortWithError(c, newValidationError("rate_date", "invalid_rate_date", "invalid rate_date"))
			return
		}
		rates = append(rates, currencydomain.UpsertRateRequest{
			Code:     in.Code,
			RateDate: rateDate,
			Value:    in.Rate,
		})
	}

	synced, err := s.currencySvc.SyncFloatingRates(c.Request.Context(), rates)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"synced": synced}})
}

func (s *Server) ConvertCurrency(c *gin.Context) {
	var query struct {
		Amount string `form:"amount"`
		From   string `form:"from"`
		To     string `form:"to"`
		Mode   string `form:"mode,default=fixed"`
		AsOf   string `form:"as_of"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(query.Amount))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}
	asOf, err := parseOptionalDate(query.AsOf)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}

	converted, err := s.currencySvc.Convert(c.Request.Context(), currencydomain.ConvertRequest{
		Amount: amount,
		From:   query.From,
		To:     query.To,
		Mode:   currencydomain.RateMode(query.Mode),
		AsOf:   asOf,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"amount":    amount,
		"from":      strings.ToUpper(query.From),
		"to":        strings.ToUpper(query.To),
		"mode":      query.Mode,
		"converted": converted,
	}})
}
