package model

import "time"

const (
	SubscriberStatusSubscribed   = "subscribed"
	SubscriberStatusUnsubscribed = "unsubscribed"
)

type Subscriber struct {
	Email          string     `json:"email"`
	FirstName      *string    `json:"first_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	Status         string     `json:"status"`
	Source         string     `json:"source"`
	Tags           []string   `json:"tags"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
