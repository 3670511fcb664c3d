package xml2xl

import (
	"errors"
	"fmt"
)

// ErrUnknownKey — в записи шаблона встретился нераспознанный ключ.
var ErrUnknownKey = errors.New("неизвестный ключ шаблона")

// ErrMalformedEntry — запись шаблона имеет недопустимую форму.
var ErrMalformedEntry = errors.New("некорректная запись шаблона")

// ErrMissingField — отсутствует обязательное поле шаблона.
var ErrMissingField = errors.New("отсутствует обязательное поле")

// ErrUnknownFormat — ссылка на несуществующий именованный формат.
var ErrUnknownFormat = errors.New("неизвестный формат")

// ErrUnknownFormatter — неизвестное имя sfmt.
var ErrUnknownFormatter = errors.New("неизвестный форматтер")

// ErrNoCursor — смещение курсора там, где значение только поднимается вверх.
var ErrNoCursor = errors.New("нет курсора")

// ErrSheetName — имя листа нельзя сделать уникальным.
var ErrSheetName = errors.New("недопустимое имя листа")

var (
	ErrRegistrySealed = errors.New("реестр ссылок уже закрыт")
	ErrRegistryOpen   = errors.New("реестр ссылок ещё не закрыт")
)

// EntryError привязывает ошибку к пути записи в шаблоне.
type EntryError struct {
	Where string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Where, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func entryErr(where string, err error) error {
	return &EntryError{Where: where, Err: err}
}

// EvalError — сбой выражения eval на конкретном значении.
type EvalError struct {
	Where string
	Expr  string
	Value interface{}
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: eval %q при x=%#v: %v", e.Where, e.Expr, e.Value, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// DanglingLinkError — ссылка на пару (лист, id), которую никто не зарегистрировал.
type DanglingLinkError struct {
	Sheet string
	ID    string
}

func (e *DanglingLinkError) Error() string {
	return fmt.Sprintf("ссылка на незарегистрированный адрес (%q, %q)", e.Sheet, e.ID)
}

// DuplicateLinkError — ссылка ведёт на адрес (лист, id), под которым
// зарегистрировано несколько ячеек.
type DuplicateLinkError struct {
	Sheet          string
	ID             string
	Row, Col       int
	DupRow, DupCol int
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("ссылка на неоднозначный адрес (%q, %q): ячейки (%d,%d) и (%d,%d)", e.Sheet, e.ID, e.Row, e.Col, e.DupRow, e.DupCol)
}
