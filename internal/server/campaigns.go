package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	campaigndomain "github.com/smallbiznis/creditgate/internal/campaign/domain"
	recurringdomain "github.com/smallbiznis/creditgate/internal/recurring/domain"
)

type upsertCampaignRequest struct {
	OwnerAccountID string `json:"owner_account_id"`
	Status         string `json:"status"`
}

type chargeCampaignRequest struct {
	PeriodKey string `json:"period_key"`
}

type chargeCampaignResponse struct {
	Outcome recurringdomain.Outcome `json:"outcome"`
	Reason  string                  `json:"reason,omitempty"`
	Claim   *recurringdomain.Claim  `json:"claim,omitempty"`
}

func (s *Server) UpsertCampaign(c *gin.Context) {
	var req upsertCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	campaign, err := s.campaignSvc.Upsert(c.Request.Context(), campaigndomain.UpsertCampaignRequest{
		ID:             strings.TrimSpace(c.Param("id")),
		OwnerAccountID: strings.TrimSpace(req.OwnerAccountID),
		Status:         campaigndomain.Status(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": campaign})
}

// ChargeCampaign runs the recurring fee for an active campaign against its
// owner. The period defaults to the current UTC month.
func (s *Server) ChargeCampaign(c *gin.Context) {
	var req chargeCampaignRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	ctx := c.Request.Context()
	campaign, err := s.campaignSvc.Get(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if campaign.Status != campaigndomain.StatusActive {
		AbortWithError(c, campaigndomain.ErrNotActive)
		return
	}
	campaignID, accountID := campaign.ID, campaign.OwnerAccountID

	var result recurringdomain.Result
	if period := strings.TrimSpace(req.PeriodKey); period != "" {
		result, err = s.recurringSvc.ChargePeriod(ctx, recurringdomain.ChargeRequest{
			CampaignID: campaignID,
			AccountID:  accountID,
			PeriodKey:  period,
		})
	} else {
		result, err = s.recurringSvc.ChargeCurrentPeriod(ctx, campaignID, accountID)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": chargeCampaignResponse{
		Outcome: result.Outcome,
		Reason:  result.Reason,
		Claim:   result.Claim,
	}})
}

func (s *Server) GetRecurringCharge(c *gin.Context) {
	claim, err := s.recurringSvc.GetClaim(c.Request.Context(), c.Param("id"), c.Param("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": claim})
}
