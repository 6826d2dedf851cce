package models

import (
	"math"
	"time"
)

// Review rating bounds.
const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// Review is a student's rating of a tutor they hired. A student reviews a
// tutor at most once.
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TutorID   uint      `gorm:"not null;uniqueIndex:idx_review_tutor_student,priority:1" json:"tutor_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_review_tutor_student,priority:2;index" json:"student_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tutor     *User     `gorm:"foreignKey:TutorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"tutor,omitempty"`
	Student   *User     `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
}

// RoundRating rounds an average rating to one decimal place.
func RoundRating(average float64) float64 {
	return math.Round(average*10) / 10
}
