package entities

import (
	"time"
)

type Evaluation struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	StartSlide  int       `json:"start_slide"`
	EndSlide    int       `json:"end_slide"`
	Audience    string    `json:"audience"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Transcript  string    `json:"transcript"`
	AudioObject string    `json:"audio_object"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
