package model

// Todo is a task owned by exactly one user.
//
// OwnerID is the foreign key to User.ID. Every non-admin query filters on it,
// so a user can never see or change another user's todos.
type Todo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Complete    bool   `json:"complete"`
	OwnerID     int64  `json:"owner_id"`
}
