package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/paularlott/loom/internal/log"
)

// Thread is one conversation with the agent service
type Thread struct {
	Id        string    `json:"thread_id" db:"thread_id,pk" msgpack:"thread_id"`
	Title     string    `json:"title" db:"title" msgpack:"title"`
	Profile   string    `json:"profile,omitempty" db:"profile" msgpack:"profile"`
	CreatedAt time.Time `json:"created_at" db:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" msgpack:"updated_at"`
}

// NewThread creates a new Thread object
func NewThread(title string, profile string) *Thread {
	id, err := uuid.NewV7()
	if err != nil {
		log.Fatal(err.Error())
	}

	now := time.Now().UTC()

	return &Thread{
		Id:        id.String(),
		Title:     title,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
