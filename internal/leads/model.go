package leads

import (
	"strings"
	"time"
)

// Lead is a prospective customer captured by a workspace.
type Lead struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateLeadRequest represents the request body for creating a lead
type CreateLeadRequest struct {
	WorkspaceID string `json:"-"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
	Source      string `json:"source"`
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.WorkspaceID) == "" {
		return ErrMissingWorkspaceID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}

// ContactUpdate carries identity fields collected during booking.
// Empty strings leave the stored value unchanged.
type ContactUpdate struct {
	Name  string
	Phone string
	Email string
}

func (u ContactUpdate) empty() bool {
	return u.Name == "" && u.Phone == "" && u.Email == ""
}

func (u ContactUpdate) apply(l *Lead) {
	if u.Name != "" {
		l.Name = u.Name
	}
	if u.Phone != "" {
		l.Phone = u.Phone
	}
	if u.Email != "" {
		l.Email = u.Email
	}
}

// ListFilter pages through a workspace's leads.
type ListFilter struct {
	Limit  int
	Offset int
}
