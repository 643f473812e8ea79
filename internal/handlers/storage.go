package handlers

import (
	"context"

	"labmarket/internal/matching"
	"labmarket/models"
)

type StorageInterface interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	GetOrder(ctx context.Context, orderID int) (*models.Order, error)
	GetDoctorOrders(ctx context.Context, doctorID int, limit, offset int) ([]models.Order, error)
	GetOpenOrders(ctx context.Context, category string, limit, offset int) ([]models.Order, error)
	SetOrderStatus(ctx context.Context, orderID int, status models.OrderStatus) error

	GetLab(ctx context.Context, labID int) (*models.Lab, error)
	UpsertPreferredLab(ctx context.Context, p *models.PreferredLab) error

	ClaimsForOrder(ctx context.Context, orderID int) ([]models.Claim, error)
	ClaimsForLab(ctx context.Context, labID int, limit, offset int) ([]models.Claim, error)
}

type MatchingInterface interface {
	RankLabs(ctx context.Context, doctorID int, category string, urgency models.Urgency, mode matching.Mode, limit int) ([]matching.Candidate, error)
	Quote(ctx context.Context, labID int, category string, urgency models.Urgency) (matching.Quote, error)
	CreateOrder(ctx context.Context, caller matching.Caller, p matching.OrderParams) (*models.Order, error)
	SubmitClaim(ctx context.Context, caller matching.Caller, orderID int, price *float64, comment string) (*models.Claim, error)
	AcceptClaim(ctx context.Context, caller matching.Caller, claimID int) (*models.Claim, error)
	WithdrawClaim(ctx context.Context, caller matching.Caller, claimID int) error
	AdminOverride(ctx context.Context, caller matching.Caller, orderID, labID int) (*models.Order, error)
}
