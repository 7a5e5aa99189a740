// Package models provides data model definitions for the Rollcall core.
package models

// Attendee represents a person on the master attendance list.
//
// The ID is a stable external key owned by the cloud master list. An attendee
// with NotExistOnCloud set is known locally but was absent from the latest
// master-list fetch; it is kept until an explicit purge so a later sync can
// clear the flag again.
type Attendee struct {
	ID              string `db:"id" json:"id"`
	FullName        string `db:"full_name" json:"full_name"`
	ShortName       string `db:"short_name" json:"short_name,omitempty"`
	NotExistOnCloud bool   `db:"not_exist_on_cloud" json:"not_exist_on_cloud"`
	CreatedAt       int64  `db:"created_at" json:"created_at"`
	UpdatedAt       int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Attendee.
func (Attendee) TableName() string {
	return "attendees"
}

// DisplayName returns the short name when set, otherwise the full name.
func (a *Attendee) DisplayName() string {
	if a.ShortName != "" {
		return a.ShortName
	}
	return a.FullName
}

// Group represents a named group of attendees from the master list.
type Group struct {
	GroupID         string `db:"group_id" json:"group_id"`
	Name            string `db:"name" json:"name"`
	NotExistOnCloud bool   `db:"not_exist_on_cloud" json:"not_exist_on_cloud"`
	CreatedAt       int64  `db:"created_at" json:"created_at"`
	UpdatedAt       int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Group.
func (Group) TableName() string {
	return "groups"
}

// AttendeeGroupMapping is a relational edge between an attendee and a group.
// Mappings are fully remote-authoritative: master-list sync replaces the
// whole local set instead of marking orphans.
type AttendeeGroupMapping struct {
	AttendeeID string `db:"attendee_id" json:"attendee_id"`
	GroupID    string `db:"group_id" json:"group_id"`
}

// TableName returns the table name for AttendeeGroupMapping.
func (AttendeeGroupMapping) TableName() string {
	return "attendee_group_mappings"
}
