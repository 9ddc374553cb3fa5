package models

// Screen — экран верхнего уровня. Активен ровно один.
type Screen string

const (
	ScreenLoading      Screen = "loading"
	ScreenLogin        Screen = "login"
	ScreenEmailCode    Screen = "emailCode"
	ScreenUnauthorized Screen = "unauthorized"
	ScreenError        Screen = "error"
	ScreenMain         Screen = "main"
	ScreenMarkMultiple Screen = "markMultiple"
	ScreenMarking      Screen = "marking"
	ScreenPoints       Screen = "points"
	ScreenSchedule     Screen = "schedule"
	ScreenGroupStatus  Screen = "groupStatus"
	ScreenAdmin        Screen = "admin"
)

// MainChildren — экраны, открываемые с главного по намерению пользователя.
var MainChildren = map[Screen]bool{
	ScreenMarkMultiple: true,
	ScreenPoints:       true,
	ScreenSchedule:     true,
	ScreenGroupStatus:  true,
	ScreenAdmin:        true,
}
