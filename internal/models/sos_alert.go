package models

import "time"

type SOSStatus string

const (
	SOSStatusActive     SOSStatus = "active"
	SOSStatusResponding SOSStatus = "responding"
	SOSStatusResolved   SOSStatus = "resolved"
)

func (s SOSStatus) IsValid() bool {
	switch s {
	case SOSStatusActive, SOSStatusResponding, SOSStatusResolved:
		return true
	}
	return false
}

type Coordinates struct {
	Latitude  float64 `json:"latitude" firestore:"latitude"`
	Longitude float64 `json:"longitude" firestore:"longitude"`
}

type SOSAlert struct {
	ID                string       `json:"id" firestore:"-"`
	TouristID         string       `json:"touristId" firestore:"touristId"`
	TouristName       string       `json:"touristName" firestore:"touristName"`
	Location          string       `json:"location" firestore:"location"`
	Coordinates       *Coordinates `json:"coordinates,omitempty" firestore:"coordinates,omitempty"`
	Message           string       `json:"message" firestore:"message"`
	Status            SOSStatus    `json:"status" firestore:"status"`
	RespondingGuideID *string      `json:"respondingGuideId,omitempty" firestore:"respondingGuideId,omitempty"`
	CreatedAt         time.Time    `json:"createdAt" firestore:"createdAt"`
	ResponseTime      *time.Time   `json:"responseTime,omitempty" firestore:"responseTime,omitempty"`
	ResolvedAt        *time.Time   `json:"resolvedAt,omitempty" firestore:"resolvedAt,omitempty"`
}

// IsRespondedBy reports whether guideID is the guide currently responding.
func (a *SOSAlert) IsRespondedBy(guideID string) bool {
	return a.Status == SOSStatusResponding && a.RespondingGuideID != nil && *a.RespondingGuideID == guideID
}
