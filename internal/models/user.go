package models

// User — запись авторизованного студента. Создаётся при успешном checker,
// уничтожается при выходе или сбросе контроллера.
type User struct {
	FullName     string
	Group        string
	AllowConfirm bool
	AdminLevel   int
}

// IsAdmin — доступ к административному экрану.
func (u *User) IsAdmin() bool {
	return u != nil && u.AdminLevel > 0
}

// GroupMember — запись одногруппника из ростера.
type GroupMember struct {
	TgID         int64
	FIO          string
	AllowConfirm bool
	Group        string
}

// Valid отсеивает битые записи ростера до показа пользователю.
func (m GroupMember) Valid() bool {
	return m.TgID != 0 && m.FIO != ""
}
