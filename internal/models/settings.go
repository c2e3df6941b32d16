package models

type AgeGroup string

const (
	AgeChild AgeGroup = "child"
	AgeTeen  AgeGroup = "teen"
	AgeAdult AgeGroup = "adult"
)

type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailDetailed DetailLevel = "detailed"
)

// UserSettings is the durable preference record. It is always written whole.
type UserSettings struct {
	AgeGroup    AgeGroup    `json:"ageGroup"`
	AutoSave    bool        `json:"autoSave"`
	DetailLevel DetailLevel `json:"detailLevel"`
}

// DefaultSettings is used whenever storage is empty or unreadable.
func DefaultSettings() UserSettings {
	return UserSettings{
		AgeGroup:    AgeAdult,
		AutoSave:    false,
		DetailLevel: DetailDetailed,
	}
}

func (a AgeGroup) Valid() bool {
	switch a {
	case AgeChild, AgeTeen, AgeAdult:
		return true
	}
	return false
}

func (d DetailLevel) Valid() bool {
	switch d {
	case DetailBrief, DetailDetailed:
		return true
	}
	return false
}

// Valid reports whether every enum field holds a known value.
func (s UserSettings) Valid() bool {
	return s.AgeGroup.Valid() && s.DetailLevel.Valid()
}
