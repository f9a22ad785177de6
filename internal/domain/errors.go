package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается хранилищем, если документ отсутствует.
	ErrNotFound = errors.New("документ не найден")
	// ErrConflict возвращается хранилищем при конфликте уникального ключа.
	ErrConflict = errors.New("документ уже существует")
	// ErrUnauthenticated возвращается, если у запроса нет действующей сессии.
	ErrUnauthenticated = errors.New("пользователь не аутентифицирован")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrEmailTaken возвращается при повторной регистрации email.
	ErrEmailTaken = errors.New("email уже зарегистрирован")
	// ErrCacheMiss возвращается кэшем, если ключ не задан.
	ErrCacheMiss = errors.New("ключ не найден в кэше")
)

// RemoteError оборачивает любой сбой удалённого вызова: сеть, авторизация, валидация, таймаут.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Remote оборачивает err в RemoteError. nil остаётся nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// IsRemote сообщает, является ли ошибка удалённой.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// ValidationError описывает локально обнаруженный некорректный ввод.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// Invalid создаёт ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation сообщает, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
