package model

import "time"

// AdmissionLock is a cross-instance lease on one resource+date admission lane.
type AdmissionLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func AdmissionKey(resourceID, date string) string {
	return resourceID + "|" + date
}
