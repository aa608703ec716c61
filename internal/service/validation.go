package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/allresumeservices/client-intake/internal/domain"
)

const monthYearLayout = "01/2006"

// finalizeCandidate is the trimmed view of a draft that must pass before a
// record may be created.
type finalizeCandidate struct {
	FirstName        string             `json:"first_name" validate:"required"`
	LastName         string             `json:"last_name" validate:"required"`
	Email            string             `json:"email" validate:"required,email"`
	Phone            string             `json:"phone" validate:"required"`
	CityState        string             `json:"city_state" validate:"required"`
	EmploymentStatus string             `json:"employment_status" validate:"required,employment_status"`
	TargetRoles      string             `json:"target_roles" validate:"required"`
	JobAdLink1       string             `json:"job_ad_link_1" validate:"omitempty,http_url"`
	JobAdLink2       string             `json:"job_ad_link_2" validate:"omitempty,http_url"`
	JobAdLink3       string             `json:"job_ad_link_3" validate:"omitempty,http_url"`
	History          []historyCandidate `json:"employment_history" validate:"dive"`
}

type historyCandidate struct {
	JobTitle       string `json:"job_title" validate:"required"`
	Employer       string `json:"employer" validate:"required"`
	StartDate      string `json:"start_date" validate:"required,month_year"`
	EndDate        string `json:"end_date" validate:"required,month_year_or_current"`
	EmploymentType string `json:"employment_type" validate:"required,employment_type"`
}

var fieldReasons = map[string]string{
	"required":              "is required",
	"email":                 "must be a valid email address",
	"http_url":              "must be an absolute http(s) URL",
	"employment_status":     "must be one of " + strings.Join(domain.EmploymentStatuses, ", "),
	"employment_type":       "must be one of " + strings.Join(domain.EmploymentTypes, ", "),
	"month_year":            "must be MM/YYYY",
	"month_year_or_current": "must be MM/YYYY or " + domain.EndDateCurrent,
	"not_before_start":      "must not be before start_date",
}

type intakeValidator struct {
	v *validator.Validate
}

func newIntakeValidator() *intakeValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("employment_status", func(fl validator.FieldLevel) bool {
		return domain.IsEmploymentStatus(fl.Field().String())
	})
	_ = v.RegisterValidation("employment_type", func(fl validator.FieldLevel) bool {
		return domain.IsEmploymentType(fl.Field().String())
	})
	_ = v.RegisterValidation("month_year", func(fl validator.FieldLevel) bool {
		_, ok := parseMonthYear(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("month_year_or_current", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == domain.EndDateCurrent {
			return true
		}
		_, ok := parseMonthYear(raw)
		return ok
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		h := sl.Current().Interface().(historyCandidate)
		start, okStart := parseMonthYear(h.StartDate)
		end, okEnd := parseMonthYear(h.EndDate)
		if okStart && okEnd && end.Before(start) {
			sl.ReportError(h.EndDate, "end_date", "EndDate", "not_before_start", "")
		}
	}, historyCandidate{})
	return &intakeValidator{v: v}
}

// ValidEmail applies the same email rule finalize uses.
func (iv *intakeValidator) ValidEmail(email string) bool {
	return iv.v.Var(email, "required,email") == nil
}

// ValidateForFinalize checks a draft and returns every failing field.
func (iv *intakeValidator) ValidateForFinalize(d *domain.IntakeDraft, s domain.IntakeSections) []FieldError {
	err := iv.v.Struct(candidateFrom(d, s))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "draft", Reason: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		reason, ok := fieldReasons[fe.Tag()]
		if !ok {
			reason = fmt.Sprintf("failed %s", fe.Tag())
		}
		out = append(out, FieldError{Field: fieldPath(fe.Namespace()), Reason: reason})
	}
	return out
}

func candidateFrom(d *domain.IntakeDraft, s domain.IntakeSections) finalizeCandidate {
	c := finalizeCandidate{
		FirstName:        strings.TrimSpace(d.FirstName),
		LastName:         strings.TrimSpace(d.LastName),
		Email:            strings.TrimSpace(d.Email),
		Phone:            trimmed(s.Phone),
		CityState:        trimmed(s.CityState),
		EmploymentStatus: trimmed(s.EmploymentStatus),
		TargetRoles:      trimmed(s.TargetRoles),
		JobAdLink1:       trimmed(s.JobAdLink1),
		JobAdLink2:       trimmed(s.JobAdLink2),
		JobAdLink3:       trimmed(s.JobAdLink3),
	}
	for _, it := range s.History() {
		end := strings.TrimSpace(it.EndDate)
		if it.IsCurrent() {
			end = domain.EndDateCurrent
		}
		c.History = append(c.History, historyCandidate{
			JobTitle:       strings.TrimSpace(it.JobTitle),
			Employer:       strings.TrimSpace(it.Employer),
			StartDate:      strings.TrimSpace(it.StartDate),
			EndDate:        end,
			EmploymentType: strings.TrimSpace(it.EmploymentType),
		})
	}
	return c
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func parseMonthYear(raw string) (time.Time, bool) {
	if len(raw) != len(monthYearLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(monthYearLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func trimmed(p *string) string {
	return strings.TrimSpace(domain.StringValue(p))
}
