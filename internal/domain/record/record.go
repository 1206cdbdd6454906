package record

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
)

// KeyLayout is the timestamp layout used for record keys (YYYYMMDD_HHMMSS).
const KeyLayout = "20060102_150405"

// KeyFor returns the base key for a submission made at t.
func KeyFor(t time.Time) string {
	return t.Format(KeyLayout)
}

// DisambiguatedKey returns the n-th alternative for a base key that is
// already taken. n starts at 1.
func DisambiguatedKey(base string, n int) string {
	return fmt.Sprintf("%s_%d", base, n)
}

type Label string

const (
	LabelRisk    Label = "Risk (Cancer)"
	LabelLowRisk Label = "Low Risk (Non-Cancer)"
)

func (l Label) IsRisk() bool {
	return l == LabelRisk
}

type Status string

const (
	StatusPending Status = "Pending"
	StatusReplied Status = "Replied"
)

// Confidence sources.
const (
	ConfidenceLegacyRandom = "legacy-random"
	ConfidenceScoreMargin  = "score-margin"
	ConfidenceUnscored     = "unscored"
)

// Habit names as submitted by the screening form.
const (
	HabitTobacco = "Tobacco"
	HabitAlcohol = "Alcohol"
	HabitSmoking = "Smoking"
)

const DefaultDoctor = "Dr. John Doe"

// Symptoms are free-form answers from the screening form. None are validated.
type Symptoms struct {
	PainLevel    string   `json:"pain_level"`
	Bleeding     string   `json:"bleeding"`
	Swelling     string   `json:"swelling"`
	Duration     string   `json:"duration"`
	History      string   `json:"history"`
	Habits       []string `json:"habits"`
	TobaccoYears string   `json:"tobacco_years"`
	AlcoholYears string   `json:"alcohol_years"`
	SmokingYears string   `json:"smoking_years"`
	TrismusTest  string   `json:"trismus_test"`
	MouthPain    string   `json:"mouth_pain"`
	ExtraDetails string   `json:"extra_details"`
}

func (s Symptoms) HasHabit(name string) bool {
	return slices.ContainsFunc(s.Habits, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(h), name)
	})
}

type Reply struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key       string   `gorm:"column:record_key;type:varchar(50);uniqueIndex;not null" json:"key"`
	ImagePath string   `gorm:"column:image_path;type:varchar(255);not null" json:"image_path"`
	Symptoms  Symptoms `gorm:"column:symptoms;serializer:json" json:"symptoms"`

	Prediction       Label    `gorm:"column:prediction;type:varchar(100)" json:"prediction"`
	Score            *float64 `gorm:"column:score" json:"score,omitempty"`
	Confidence       float64  `gorm:"column:confidence" json:"confidence"`
	ConfidenceSource string   `gorm:"column:confidence_source;type:varchar(30)" json:"confidence_source"`

	Status         Status  `gorm:"column:status;type:varchar(20);default:'Pending';index" json:"status"`
	DoctorReplies  []Reply `gorm:"column:doctor_replies;serializer:json" json:"doctor_replies"`
	PatientReplies []Reply `gorm:"column:patient_replies;serializer:json" json:"patient_replies"`
	FollowUp       bool    `gorm:"column:follow_up;default:false" json:"follow_up"`

	// Owner; empty for anonymous submissions. Never changes after creation.
	Username string `gorm:"column:username;type:varchar(150);index" json:"username,omitempty"`
	Doctor   string `gorm:"column:doctor;type:varchar(150)" json:"doctor"`

	AudioPath string `gorm:"column:audio_path;type:varchar(255)" json:"audio_path,omitempty"`
	PDFPath   string `gorm:"column:pdf_path;type:varchar(255)" json:"pdf_path,omitempty"`
}

func (Record) TableName() string {
	return "clinical.patient_records"
}

func (r *Record) IsRisk() bool {
	return r.Prediction.IsRisk()
}

func (r *Record) IsOwnedBy(username string) bool {
	return username != "" && r.Username == username
}

// AddReply appends to the role's log. The first doctor reply moves the record
// to StatusReplied; the status never reverts.
func (r *Record) AddReply(role domain.Role, message string, at time.Time) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	reply := Reply{Message: message, Time: at}
	switch role {
	case domain.RoleDoctor:
		r.DoctorReplies = append(r.DoctorReplies, reply)
		r.Status = StatusReplied
	case domain.RolePatient:
		r.PatientReplies = append(r.PatientReplies, reply)
	default:
		return ErrInvalidRole
	}
	r.UpdatedAt = at
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Symptoms.Habits = slices.Clone(r.Symptoms.Habits)
	c.DoctorReplies = slices.Clone(r.DoctorReplies)
	c.PatientReplies = slices.Clone(r.PatientReplies)
	if r.Score != nil {
		s := *r.Score
		c.Score = &s
	}
	return &c
}

// SubmitCommand carries one screening submission.
type SubmitCommand struct {
	Image    []byte
	Symptoms Symptoms
}
