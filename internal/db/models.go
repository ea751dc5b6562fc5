package db

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    int64
}

type Session struct {
	SessionID string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

type Note struct {
	ID        int64
	Title     string
	Text      string
	Slug      string
	AuthorID  string
	CreatedAt int64
	UpdatedAt int64
}
