package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const EndDateCurrent = "Current"

var EmploymentTypes = []string{"full_time", "part_time", "casual", "contract"}

var ErrHistoryIndexOutOfRange = errors.New("employment history index out of range")

func IsEmploymentType(v string) bool {
	return slices.Contains(EmploymentTypes, v)
}

// EmploymentHistoryEntry is one persisted job row of a finalized intake.
type EmploymentHistoryEntry struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	IntakeRecordID      uint      `gorm:"not null;index:idx_history_record_order" json:"intake_record_id"`
	JobTitle            string    `gorm:"size:255;not null" json:"job_title"`
	Employer            string    `gorm:"size:255;not null" json:"employer"`
	Location            string    `gorm:"size:255" json:"location,omitempty"`
	StartDate           string    `gorm:"size:20;not null" json:"start_date"`
	EndDate             string    `gorm:"size:20;not null" json:"end_date"`
	EmploymentType      string    `gorm:"size:16;not null" json:"employment_type"`
	KeyResponsibilities string    `gorm:"type:text" json:"key_responsibilities,omitempty"`
	KeyAchievements     string    `gorm:"type:text" json:"key_achievements,omitempty"`
	SortOrder           int       `gorm:"not null;default:0;index:idx_history_record_order" json:"sort_order"`
	CreatedAt           time.Time `json:"created_at"`
}

// EmploymentHistoryItem is a job entry while it lives in a draft. It has no
// identity besides its position in the list.
type EmploymentHistoryItem struct {
	JobTitle            string `json:"job_title"`
	Employer            string `json:"employer"`
	Location            string `json:"location,omitempty"`
	StartDate           string `json:"start_date"`
	EndDate             string `json:"end_date"`
	EmploymentType      string `json:"employment_type"`
	KeyResponsibilities string `json:"key_responsibilities,omitempty"`
	KeyAchievements     string `json:"key_achievements,omitempty"`
	SortOrder           int    `json:"sort_order"`
}

func (it EmploymentHistoryItem) IsCurrent() bool {
	return strings.EqualFold(strings.TrimSpace(it.EndDate), EndDateCurrent)
}

// EmploymentHistoryList is the ordered job list of a draft. Every method
// returns a new list with SortOrder re-indexed from zero; the receiver is
// never modified.
type EmploymentHistoryList []EmploymentHistoryItem

func (l EmploymentHistoryList) Append(item EmploymentHistoryItem) EmploymentHistoryList {
	out := append(slices.Clone(l), item)
	return out.Reindex()
}

func (l EmploymentHistoryList) Remove(i int) (EmploymentHistoryList, error) {
	if err := l.checkIndex(i); err != nil {
		return l, err
	}
	out := slices.Delete(slices.Clone(l), i, i+1)
	return out.Reindex(), nil
}

// Move takes the entry at from and inserts it at position to, shifting the
// entries in between.
func (l EmploymentHistoryList) Move(from, to int) (EmploymentHistoryList, error) {
	if err := l.checkIndex(from); err != nil {
		return l, err
	}
	if err := l.checkIndex(to); err != nil {
		return l, err
	}
	item := l[from]
	out := slices.Delete(slices.Clone(l), from, from+1)
	out = slices.Insert(out, to, item)
	return out.Reindex(), nil
}

func (l EmploymentHistoryList) Swap(i, j int) (EmploymentHistoryList, error) {
	if err := l.checkIndex(i); err != nil {
		return l, err
	}
	if err := l.checkIndex(j); err != nil {
		return l, err
	}
	out := slices.Clone(l)
	out[i], out[j] = out[j], out[i]
	return out.Reindex(), nil
}

func (l EmploymentHistoryList) Edit(i int, edit func(*EmploymentHistoryItem)) (EmploymentHistoryList, error) {
	if err := l.checkIndex(i); err != nil {
		return l, err
	}
	out := slices.Clone(l)
	edit(&out[i])
	return out.Reindex(), nil
}

// Reindex makes SortOrder equal to list position.
func (l EmploymentHistoryList) Reindex() EmploymentHistoryList {
	out := slices.Clone(l)
	for i := range out {
		out[i].SortOrder = i
	}
	return out
}

// Entries materializes the list into rows for the given record. SortOrder is
// taken from position, not from the stored SortOrder values.
func (l EmploymentHistoryList) Entries(recordID uint) []EmploymentHistoryEntry {
	out := make([]EmploymentHistoryEntry, 0, len(l))
	for i, it := range l {
		endDate := strings.TrimSpace(it.EndDate)
		if it.IsCurrent() {
			endDate = EndDateCurrent
		}
		out = append(out, EmploymentHistoryEntry{
			IntakeRecordID:      recordID,
			JobTitle:            strings.TrimSpace(it.JobTitle),
			Employer:            strings.TrimSpace(it.Employer),
			Location:            strings.TrimSpace(it.Location),
			StartDate:           strings.TrimSpace(it.StartDate),
			EndDate:             endDate,
			EmploymentType:      strings.TrimSpace(it.EmploymentType),
			KeyResponsibilities: it.KeyResponsibilities,
			KeyAchievements:     it.KeyAchievements,
			SortOrder:           i,
		})
	}
	return out
}

func (l EmploymentHistoryList) checkIndex(i int) error {
	if i < 0 || i >= len(l) {
		return fmt.Errorf("%w: %d (len %d)", ErrHistoryIndexOutOfRange, i, len(l))
	}
	return nil
}
