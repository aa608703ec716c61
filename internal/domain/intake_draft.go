package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// IntakeDraft is the autosaved, token-addressed state of an intake form.
// Payload holds an IntakeSections object; it is merged key by key on every
// save, so absent keys keep their stored values.
type IntakeDraft struct {
	ID                  uint           `gorm:"primaryKey" json:"-"`
	Token               string         `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Email               string         `gorm:"size:320;not null;index" json:"email"`
	FirstName           string         `gorm:"size:100;not null" json:"first_name"`
	LastName            string         `gorm:"size:100;not null" json:"last_name"`
	PaypalTransactionID string         `gorm:"size:255" json:"paypal_transaction_id,omitempty"`
	OrderReference      string         `gorm:"size:255" json:"order_reference,omitempty"`
	ServicePurchased    string         `gorm:"size:255" json:"service_purchased,omitempty"`
	Payload             datatypes.JSON `gorm:"not null" json:"-"`
	ReminderSentAt      *time.Time     `gorm:"index" json:"reminder_sent_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`
}

// Sections decodes the stored payload. An empty payload yields zero sections.
func (d *IntakeDraft) Sections() (IntakeSections, error) {
	var s IntakeSections
	if len(d.Payload) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(d.Payload, &s); err != nil {
		return IntakeSections{}, fmt.Errorf("decode draft payload: %w", err)
	}
	return s, nil
}

// IntakeSections is the optional part of the intake form. A nil field was
// never sent by the client; a pointer to an empty value clears it.
type IntakeSections struct {
	Phone           *string `json:"phone,omitempty"`
	CityState       *string `json:"city_state,omitempty"`
	BestContactTime *string `json:"best_contact_time,omitempty"`

	EmploymentStatus    *string `json:"employment_status,omitempty"`
	CurrentJobTitle     *string `json:"current_job_title,omitempty"`
	CurrentEmployer     *string `json:"current_employer,omitempty"`
	CurrentRoleOverview *string `json:"current_role_overview,omitempty"`

	TargetRoles         *string   `json:"target_roles,omitempty"`
	PreferredIndustries *string   `json:"preferred_industries,omitempty"`
	LocationPreferences *string   `json:"location_preferences,omitempty"`
	WorkArrangements    *[]string `json:"work_arrangements,omitempty"`
	JobAdLink1          *string   `json:"job_ad_link_1,omitempty"`
	JobAdLink2          *string   `json:"job_ad_link_2,omitempty"`
	JobAdLink3          *string   `json:"job_ad_link_3,omitempty"`

	EmploymentHistory *EmploymentHistoryList `json:"employment_history,omitempty"`

	HighestQualification     *string `json:"highest_qualification,omitempty"`
	Institution              *string `json:"institution,omitempty"`
	YearCompleted            *string `json:"year_completed,omitempty"`
	AdditionalQualifications *string `json:"additional_qualifications,omitempty"`

	DriversLicence     *string `json:"drivers_licence,omitempty"`
	HighRiskLicences   *string `json:"high_risk_licences,omitempty"`
	SiteInductions     *string `json:"site_inductions,omitempty"`
	SecurityClearances *string `json:"security_clearances,omitempty"`

	TechnicalSkills        *string `json:"technical_skills,omitempty"`
	InterpersonalStrengths *string `json:"interpersonal_strengths,omitempty"`

	EmploymentGaps  *string `json:"employment_gaps,omitempty"`
	KeyAchievements *string `json:"key_achievements,omitempty"`
	PreferredStyle  *string `json:"preferred_style,omitempty"`
	HearAboutUs     *string `json:"hear_about_us,omitempty"`

	ResumeFileURL      *string   `json:"resume_file_url,omitempty"`
	SupportingDocsURLs *[]string `json:"supporting_docs_urls,omitempty"`
}

// History returns the employment history list, never nil.
func (s IntakeSections) History() EmploymentHistoryList {
	if s.EmploymentHistory == nil {
		return EmploymentHistoryList{}
	}
	return *s.EmploymentHistory
}

// StringValue dereferences an optional section field.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StringsValue dereferences an optional list field.
func StringsValue(p *[]string) []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), (*p)...)
}

// StringPtr is a helper for building sections in code and tests.
func StringPtr(v string) *string { return &v }
