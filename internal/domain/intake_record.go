package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type IntakeStatus string

const (
	IntakeStatusPending    IntakeStatus = "pending"
	IntakeStatusInProgress IntakeStatus = "in_progress"
	IntakeStatusCompleted  IntakeStatus = "completed"
)

// ParseIntakeStatus accepts any of the three workflow labels. Transitions
// between them are unrestricted.
func ParseIntakeStatus(raw string) (IntakeStatus, bool) {
	switch IntakeStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case IntakeStatusPending:
		return IntakeStatusPending, true
	case IntakeStatusInProgress:
		return IntakeStatusInProgress, true
	case IntakeStatusCompleted:
		return IntakeStatusCompleted, true
	default:
		return "", false
	}
}

var EmploymentStatuses = []string{
	"employed_full_time",
	"employed_part_time",
	"casual",
	"contractor",
	"unemployed",
	"student",
	"other",
}

func IsEmploymentStatus(v string) bool {
	for _, s := range EmploymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IntakeRecord is the finalized, payment-linked intake. Only Status,
// AdminNotes and UpdatedAt change after creation.
type IntakeRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	OrderReference      string  `gorm:"size:255;index" json:"order_reference,omitempty"`
	PaypalTransactionID *string `gorm:"size:255;uniqueIndex" json:"paypal_transaction_id,omitempty"`
	PurchasedService    string  `gorm:"size:255;index" json:"purchased_service,omitempty"`

	FirstName       string `gorm:"size:100;not null" json:"first_name"`
	LastName        string `gorm:"size:100;not null" json:"last_name"`
	Email           string `gorm:"size:320;not null;index" json:"email"`
	Phone           string `gorm:"size:50;not null" json:"phone"`
	CityState       string `gorm:"size:255;not null" json:"city_state"`
	BestContactTime string `gorm:"type:text" json:"best_contact_time,omitempty"`

	EmploymentStatus    string `gorm:"size:32;not null" json:"employment_status"`
	CurrentJobTitle     string `gorm:"size:255" json:"current_job_title,omitempty"`
	CurrentEmployer     string `gorm:"size:255" json:"current_employer,omitempty"`
	CurrentRoleOverview string `gorm:"type:text" json:"current_role_overview,omitempty"`

	TargetRoles         string                      `gorm:"type:text;not null" json:"target_roles"`
	PreferredIndustries string                      `gorm:"type:text" json:"preferred_industries,omitempty"`
	LocationPreferences string                      `gorm:"type:text" json:"location_preferences,omitempty"`
	WorkArrangements    datatypes.JSONSlice[string] `json:"work_arrangements"`
	JobAdLink1          string                      `gorm:"size:500" json:"job_ad_link_1,omitempty"`
	JobAdLink2          string                      `gorm:"size:500" json:"job_ad_link_2,omitempty"`
	JobAdLink3          string                      `gorm:"size:500" json:"job_ad_link_3,omitempty"`

	HighestQualification     string `gorm:"size:255" json:"highest_qualification,omitempty"`
	Institution              string `gorm:"size:255" json:"institution,omitempty"`
	YearCompleted            string `gorm:"size:10" json:"year_completed,omitempty"`
	AdditionalQualifications string `gorm:"type:text" json:"additional_qualifications,omitempty"`

	DriversLicence     string `gorm:"size:100" json:"drivers_licence,omitempty"`
	HighRiskLicences   string `gorm:"type:text" json:"high_risk_licences,omitempty"`
	SiteInductions     string `gorm:"type:text" json:"site_inductions,omitempty"`
	SecurityClearances string `gorm:"type:text" json:"security_clearances,omitempty"`

	TechnicalSkills        string `gorm:"type:text" json:"technical_skills,omitempty"`
	InterpersonalStrengths string `gorm:"type:text" json:"interpersonal_strengths,omitempty"`

	EmploymentGaps  string `gorm:"type:text" json:"employment_gaps,omitempty"`
	KeyAchievements string `gorm:"type:text" json:"key_achievements,omitempty"`
	PreferredStyle  string `gorm:"type:text" json:"preferred_style,omitempty"`
	HearAboutUs     string `gorm:"size:255" json:"hear_about_us,omitempty"`

	ResumeFileURL      string                      `gorm:"type:text" json:"resume_file_url,omitempty"`
	SupportingDocsURLs datatypes.JSONSlice[string] `json:"supporting_docs_urls"`

	Status     IntakeStatus `gorm:"size:32;not null;default:pending;index" json:"status"`
	AdminNotes string       `gorm:"type:text" json:"admin_notes,omitempty"`

	EmploymentHistory []EmploymentHistoryEntry `gorm:"foreignKey:IntakeRecordID;constraint:OnDelete:CASCADE" json:"employment_history,omitempty"`

	SubmittedAt time.Time `gorm:"autoCreateTime;index" json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *IntakeRecord) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

func (r *IntakeRecord) TransactionID() string {
	if r.PaypalTransactionID == nil {
		return ""
	}
	return *r.PaypalTransactionID
}
