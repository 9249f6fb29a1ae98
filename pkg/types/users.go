package types

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleUploader UserRole = "uploader"
)

type User struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

type CreateUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

type UpdateUserRequest struct {
	Password *string   `json:"password,omitempty"`
	Role     *UserRole `json:"role,omitempty"`
}

type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
