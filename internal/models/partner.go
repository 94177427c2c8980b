package models

// Partner is a directory entry for an external partner identifier.
type Partner struct {
	ID    string
	Name  string
	Email string
	Role  string

	UpdatedAt int64
}
