package models

import "time"

type ChildProfile struct {
	ID          string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DisplayName string     `gorm:"column:display_name;type:text" json:"display_name"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth;type:date" json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	DeletedAt   *time.Time `gorm:"column:deleted_at;type:timestamptz;index" json:"deleted_at,omitempty"`
}

func (ChildProfile) TableName() string { return "child_profiles" }

type TherapistAssignment struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TherapistID string    `gorm:"column:therapist_id;type:uuid;uniqueIndex:uniq_therapist_child" json:"therapist_id"`
	ChildID     string    `gorm:"column:child_id;type:uuid;uniqueIndex:uniq_therapist_child" json:"child_id"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (TherapistAssignment) TableName() string { return "therapist_assignments" }

type Consent struct {
	ID          string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChildID     string     `gorm:"column:child_id;type:uuid;index" json:"child_id"`
	ConsentType string     `gorm:"column:consent_type;type:text" json:"consent_type"` // data|ai|audio
	GrantedAt   time.Time  `gorm:"column:granted_at;type:timestamptz" json:"granted_at"`
	RevokedAt   *time.Time `gorm:"column:revoked_at;type:timestamptz" json:"revoked_at,omitempty"`
}

func (Consent) TableName() string { return "consents" }

// Caller is the authenticated identity a service call runs as.
type Caller struct {
	ID         string
	Privileged bool
}

// CanAccess reports whether the caller owns a record attributed to ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	return c.Privileged || (c.ID != "" && c.ID == ownerID)
}
