package api

// RefreshRequest is the JSON body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest is the body of POST /users/
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
	Contact      string `json:"contact,omitempty"`
}

// PasswordChangeRequest is the body of POST /users/me/password
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AssistantCreateRequest is the body of POST /assistants/. IsPublic defaults
// to true when omitted.
type AssistantCreateRequest struct {
	Title       string   `json:"title"`
	YAMLContent string   `json:"yaml_content"`
	IsPublic    *bool    `json:"is_public,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ValidateRequest is the body of POST /validate/yaml. yaml_content is
// accepted as an alias of content.
type ValidateRequest struct {
	Content     *string `json:"content,omitempty"`
	YAMLContent *string `json:"yaml_content,omitempty"`
}

// CountResponse is the body of GET /admin/users/count
type CountResponse struct {
	Total int64 `json:"total"`
}
