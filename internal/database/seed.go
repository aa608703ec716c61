package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/allresumeservices/client-intake/internal/domain"
)

type SeedReport struct {
	CreatedDrafts int
	Noop          bool
}

// DemoPurchase is the purchase signed into the demo token. The draft copies
// it so the demo can be finalized.
type DemoPurchase struct {
	OrderReference      string
	PaypalTransactionID string
	ServicePurchased    string
}

// SeedDemoDraft inserts a half-completed draft under token for local
// development. Running it again with the same token changes nothing.
func SeedDemoDraft(db *gorm.DB, token, email string, purchase DemoPurchase) (*SeedReport, error) {
	token = strings.TrimSpace(token)
	email = strings.ToLower(strings.TrimSpace(email))
	if token == "" {
		return nil, errors.New("token is required")
	}
	if email == "" {
		email = "demo.client@example.com"
	}

	var existing int64
	if err := db.Model(&domain.IntakeDraft{}).Where("token = ?", token).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("count drafts: %w", err)
	}
	if existing > 0 {
		return &SeedReport{Noop: true}, nil
	}

	history := domain.EmploymentHistoryList{}.Append(domain.EmploymentHistoryItem{
		JobTitle:       "Dump Truck Operator",
		Employer:       "Pilbara Iron",
		Location:       "Newman, WA",
		StartDate:      "03/2019",
		EndDate:        domain.EndDateCurrent,
		EmploymentType: "full_time",
	})
	sections := domain.IntakeSections{
		Phone:             domain.StringPtr("0400 000 000"),
		CityState:         domain.StringPtr("Perth, WA"),
		EmploymentStatus:  domain.StringPtr("employed_full_time"),
		TargetRoles:       domain.StringPtr("Mine Site Supervisor"),
		EmploymentHistory: &history,
	}
	payload, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encode demo payload: %w", err)
	}

	draft := domain.IntakeDraft{
		Token:               token,
		Email:               email,
		FirstName:           "Demo",
		LastName:            "Client",
		OrderReference:      purchase.OrderReference,
		PaypalTransactionID: purchase.PaypalTransactionID,
		ServicePurchased:    purchase.ServicePurchased,
		Payload:             datatypes.JSON(payload),
	}
	if err := db.Create(&draft).Error; err != nil {
		return nil, fmt.Errorf("create demo draft: %w", err)
	}
	return &SeedReport{CreatedDrafts: 1}, nil
}
