package models

type Guide struct {
	ID             string  `json:"id" firestore:"-"`
	Email          string  `json:"email" firestore:"email"`
	Name           string  `json:"name" firestore:"name"`
	Phone          *string `json:"phone,omitempty" firestore:"phone,omitempty"`
	ActiveRequests int     `json:"activeRequests" firestore:"activeRequests"`
	Rating         float64 `json:"rating" firestore:"rating"`
	IsAvailable    bool    `json:"isAvailable" firestore:"isAvailable"`
}
