package models

// Account 通过身份提供方登录的用户
type Account struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}
