package models

// User is the read model of a member profile. The table belongs to the
// identity service; this core only reads it.
type User struct {
	ID              int64  `gorm:"primaryKey" json:"id"`
	Nickname        string `gorm:"type:varchar(64)" json:"nickname"`
	ProfileImageURL string `gorm:"type:varchar(512)" json:"profile_image_url"`
}

// Profile is the subset of a user shown next to a room.
type Profile struct {
	UserID          int64  `json:"user_id"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}
