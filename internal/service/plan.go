package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanInput carries a plan create or a partial update. Nil fields are left
// unchanged on update.
type PlanInput struct {
	ID              *string          `json:"id"`
	Name            *string          `json:"name"`
	NameFr          *string          `json:"name_fr"`
	NameEs          *string          `json:"name_es"`
	PriceUSD        *decimal.Decimal `json:"price_usd"`
	MaxCyclesPerDay *int             `json:"max_cycles_per_day"`
	DailyYieldRate  *decimal.Decimal `json:"daily_yield_rate"`
	Features        []string         `json:"features"`
	FeaturesFr      []string         `json:"features_fr"`
	FeaturesEs      []string         `json:"features_es"`
	Active          *bool            `json:"active"`
	SortOrder       *int             `json:"sort_order"`
}

func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListPlans(ctx, true)
	if err != nil {
		return nil, s.internal("list plans", err)
	}
	return plans, nil
}

func (s *Service) ListAllPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListPlans(ctx, false)
	if err != nil {
		return nil, s.internal("list plans", err)
	}
	return plans, nil
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*models.Plan, error) {
	plan := &models.Plan{ID: uuid.NewString(), Active: true}
	if in.ID != nil && strings.TrimSpace(*in.ID) != "" {
		plan.ID = strings.TrimSpace(*in.ID)
	}
	if in.Name == nil || in.PriceUSD == nil || in.MaxCyclesPerDay == nil || in.DailyYieldRate == nil {
		return nil, apperr.Validation("name, price_usd, max_cycles_per_day and daily_yield_rate are required")
	}
	applyPlanInput(plan, in)
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.GetPlan(ctx, plan.ID, tx)
		if err != nil {
			return s.internal("get plan", err)
		}
		if existing != nil {
			return apperr.Conflict("plan %s already exists", plan.ID)
		}
		if err := s.repo.CreatePlan(ctx, plan, tx); err != nil {
			return s.internal("create plan", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Plan %s created", plan.ID)
	return plan, nil
}

// UpdatePlan applies in to plan id. Price, quota and yield are frozen while an
// active subscription uses the plan.
func (s *Service) UpdatePlan(ctx context.Context, id string, in PlanInput) (*models.Plan, error) {
	var plan *models.Plan
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		plan, err = s.repo.LockPlan(ctx, id, lockForUpdate, tx)
		if err != nil {
			return s.internal("lock plan", err)
		}
		if plan == nil {
			return apperr.NotFound("plan %s not found", id)
		}

		before := *plan
		applyPlanInput(plan, in)
		if err := validatePlan(plan); err != nil {
			return err
		}

		economicsChanged := !before.PriceUSD.Equal(plan.PriceUSD) ||
			before.MaxCyclesPerDay != plan.MaxCyclesPerDay ||
			!before.DailyYieldRate.Equal(plan.DailyYieldRate)
		if economicsChanged {
			inUse, err := s.repo.CountActiveSubscriptionsForPlan(ctx, id, s.now(), tx)
			if err != nil {
				return s.internal("count plan subscriptions", err)
			}
			if inUse > 0 {
				return apperr.Conflict("plan %s has %d active subscriptions; price, quota and yield cannot change", id, inUse)
			}
		}

		if err := s.repo.SavePlan(ctx, plan, tx); err != nil {
			return s.internal("save plan", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Plan %s updated", id)
	return plan, nil
}

func applyPlanInput(plan *models.Plan, in PlanInput) {
	if in.Name != nil {
		plan.Name = strings.TrimSpace(*in.Name)
	}
	if in.NameFr != nil {
		plan.NameFr = *in.NameFr
	}
	if in.NameEs != nil {
		plan.NameEs = *in.NameEs
	}
	if in.PriceUSD != nil {
		plan.PriceUSD = *in.PriceUSD
	}
	if in.MaxCyclesPerDay != nil {
		plan.MaxCyclesPerDay = *in.MaxCyclesPerDay
	}
	if in.DailyYieldRate != nil {
		plan.DailyYieldRate = *in.DailyYieldRate
	}
	if in.Features != nil {
		plan.Features = jsonList(in.Features)
	}
	if in.FeaturesFr != nil {
		plan.FeaturesFr = jsonList(in.FeaturesFr)
	}
	if in.FeaturesEs != nil {
		plan.FeaturesEs = jsonList(in.FeaturesEs)
	}
	if in.Active != nil {
		plan.Active = *in.Active
	}
	if in.SortOrder != nil {
		plan.SortOrder = *in.SortOrder
	}
}

func validatePlan(plan *models.Plan) error {
	switch {
	case plan.Name == "":
		return apperr.Validation("plan name is required")
	case !plan.PriceUSD.IsPositive():
		return apperr.Validation("price_usd must be positive")
	case plan.MaxCyclesPerDay < 1:
		return apperr.Validation("max_cycles_per_day must be at least 1")
	case plan.DailyYieldRate.IsNegative():
		return apperr.Validation("daily_yield_rate must not be negative")
	}
	return nil
}

func jsonList(items []string) datatypes.JSON {
	raw, _ := json.Marshal(items)
	return datatypes.JSON(raw)
}
