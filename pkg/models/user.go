package models

type Profile struct {
	ID       string  `json:"id" db:"id"`
	Email    string  `json:"email" db:"email"`
	FullName *string `json:"fullName" db:"full_name"`
}

// DisplayName returns the full name or fallback when none is stored.
func (p Profile) DisplayName(fallback string) string {
	if p.FullName == nil || *p.FullName == "" {
		return fallback
	}
	return *p.FullName
}
