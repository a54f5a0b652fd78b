package domain

import (
	"context"
	"errors"
)

type Outcome string

const (
	// OutcomeCharged means this call debited the fee.
	OutcomeCharged        Outcome = "charged"
	OutcomeAlreadyCharged Outcome = "already_charged"
	// OutcomePending means another attempt holds the claim. It is not an error.
	OutcomePending        Outcome = "pending"
	OutcomeFailedRecently Outcome = "failed_recently"
	OutcomeFailed         Outcome = "failed"
)

type ChargeRequest struct {
	CampaignID string
	AccountID  string
	PeriodKey  string
}

type Result struct {
	Outcome Outcome `json:"outcome"`
	Claim   *Claim  `json:"claim,omitempty"`
	// Reason is the denial or error recorded when Outcome is failed.
	Reason string `json:"reason,omitempty"`
}

type Service interface {
	// ChargePeriod charges the fixed fee for the campaign at most once per
	// period, however many callers race on it.
	ChargePeriod(ctx context.Context, req ChargeRequest) (Result, error)
	// ChargeCurrentPeriod is ChargePeriod for the current UTC month.
	ChargeCurrentPeriod(ctx context.Context, campaignID, accountID string) (Result, error)
	GetClaim(ctx context.Context, campaignID, periodKey string) (*Claim, error)
}

var (
	ErrInvalidCampaign = errors.New("invalid_campaign")
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrInvalidClaim    = errors.New("invalid_claim_status")
	ErrClaimNotFound   = errors.New("claim_not_found")
)
