package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("пользователь не найден")
	ErrTaskNotFound       = errors.New("задача не найдена")
	ErrInvalidCredentials = errors.New("неверные учетные данные")
	ErrUserAlreadyExists  = errors.New("пользователь уже существует")
	ErrInvalidInput       = errors.New("некорректные входные данные")
	ErrDatabaseConnection = errors.New("ошибка соединения с базой данных")
	ErrValidationFailed   = errors.New("ошибка валидации")
	ErrTokenRequired      = errors.New("требуется токен доступа")
	ErrInvalidToken       = errors.New("недействительный или просроченный токен")
	ErrForbidden          = errors.New("доступ запрещён")
	ErrSelfDelete         = errors.New("нельзя удалить самого себя")
	ErrInternalServer     = errors.New("внутренняя ошибка сервера")
	ErrBadRequest         = errors.New("неверный запрос")
	ErrNotFound           = errors.New("ресурс не найден")
	ErrConflict           = errors.New("конфликт ресурса")

	ErrInvalidUsername    = errors.New("некорректное имя пользователя")
	ErrInvalidPassword    = errors.New("некорректный пароль")
	ErrInvalidName        = errors.New("некорректное отображаемое имя")
	ErrInvalidStatus      = errors.New("недопустимый статус задачи")
	ErrInvalidPriority    = errors.New("недопустимый приоритет задачи")
	ErrInvalidTitle       = errors.New("некорректный заголовок задачи")
	ErrInvalidDescription = errors.New("некорректное описание задачи")
	ErrInvalidDueDate     = errors.New("некорректный срок выполнения задачи")

	ErrConfigFileReadFailed = errors.New("не удалось прочитать файл конфигурации")
	ErrConfigParseFailed    = errors.New("не удалось разобрать файл конфигурации")
	ErrConfigInvalidFormat  = errors.New("некорректное значение параметра конфигурации")
)
