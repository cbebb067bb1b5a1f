// Пакет model — доменные модели локального хранилища пользователей.
package model

import (
	"strings"
	"time"
)

// User — локальная запись пользователя, зарегистрированного через клиента realm.
// Учётные данные хранит IdP; здесь — идентификаторы и привязка к коллекции.
type User struct {
	// ID — UUID записи
	ID string
	// Collection — коллекция пользователей (имя realm или clientId)
	Collection string
	// Realm — рабочий realm
	Realm string
	// ClientID — clientId OAuth-клиента, через который зарегистрирован пользователь
	ClientID string
	// KeycloakUserID — идентификатор пользователя в IdP (sub)
	KeycloakUserID string
	// Username — имя пользователя (nil, если не задано)
	Username *string
	// Phone — телефон (nil, если не задан)
	Phone *string
	// FirstName — имя
	FirstName string
	// LastName — фамилия
	LastName string
	// Emails — адреса в порядке добавления; первый совпадает с email в IdP
	Emails []Email
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Email — адрес электронной почты пользователя.
type Email struct {
	Address  string
	Verified bool
}

// PrimaryEmail возвращает первый адрес или пустую строку.
func (u *User) PrimaryEmail() string {
	if len(u.Emails) == 0 {
		return ""
	}
	return u.Emails[0].Address
}

// EmailVerified сообщает, подтверждён ли адрес address (без учёта регистра).
func (u *User) EmailVerified(address string) bool {
	for _, e := range u.Emails {
		if strings.EqualFold(e.Address, address) {
			return e.Verified
		}
	}
	return false
}

// HasEmail сообщает, принадлежит ли адрес пользователю.
func (u *User) HasEmail(address string) bool {
	for _, e := range u.Emails {
		if strings.EqualFold(e.Address, address) {
			return true
		}
	}
	return false
}
