package user

import "time"

type User struct {
	ID        int
	Login     string
	Password  string // хэш
	CreatedAt time.Time
}

type Credentials struct {
	Login    string `json:"login" minLength:"3" maxLength:"32" doc:"Логин"`
	Password string `json:"password" minLength:"8" doc:"Пароль"`
}
