package models

import "time"

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusRejected, RequestStatusCompleted:
		return true
	}
	return false
}

// TouristRequest is a tourist's ask for guide assistance. Created by the
// tourist-facing app; guides only ever move it out of pending.
type TouristRequest struct {
	ID          string        `json:"id" firestore:"-"`
	TouristID   string        `json:"touristId" firestore:"touristId"`
	TouristName string        `json:"touristName" firestore:"touristName"`
	Location    string        `json:"location" firestore:"location"`
	Destination string        `json:"destination" firestore:"destination"`
	RequestDate string        `json:"requestDate" firestore:"requestDate"`
	Status      RequestStatus `json:"status" firestore:"status"`
	GuideID     *string       `json:"guideId,omitempty" firestore:"guideId,omitempty"`
	Notes       *string       `json:"notes,omitempty" firestore:"notes,omitempty"`
	CreatedAt   time.Time     `json:"createdAt" firestore:"createdAt"`
	AcceptedAt  *time.Time    `json:"acceptedAt,omitempty" firestore:"acceptedAt,omitempty"`
	RejectedAt  *time.Time    `json:"rejectedAt,omitempty" firestore:"rejectedAt,omitempty"`
}
