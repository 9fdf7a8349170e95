package api

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Error bodies follow the {"message": ...} shape the web client expects.
type errorResponse struct {
	Message string `json:"message"`
}

// POST /api/users and POST /api/users/login response body.
type authResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// DELETE /api/tasks/:id response body.
type deleteResponse struct {
	ID string `json:"id"`
}

// POST /api/users and POST /api/users/login request bodies.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
