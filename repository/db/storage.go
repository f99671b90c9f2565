package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage работает через пул соединений: хэндлеры gin обслуживаются
// параллельно, а одиночный pgx.Conn параллельных запросов не переживает.
type Storage struct {
	pool *pgxpool.Pool

	sqlCreateTask        string
	sqlGetTaskByID       string
	sqlUpdateTask        string
	sqlDeleteTask        string
	sqlCreateUser        string
	sqlGetUserByUsername string
	sqlGetUsersByIDs     string
	sqlListUsers         string
}

const queryTimeout = 15 * time.Second

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Не удалось разобрать строку подключения к базе данных:", err)
		return nil, err
	}
	// пул ленивый, без Ping ошибка всплыла бы только на первом запросе
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Println("[ERROR] Не удалось подключиться к базе данных:", err)
		return nil, err
	}

	s := &Storage{
		pool: pool,
		sqlCreateTask: `INSERT INTO tasks (id, title, description, due_date, status, priority, assigned_to, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sqlGetTaskByID: `SELECT id, title, description, due_date, status, priority, assigned_to, created_by, created_at, updated_at
			FROM tasks WHERE id = $1`,
		sqlUpdateTask: `UPDATE tasks SET title = $1, description = $2, due_date = $3, status = $4, priority = $5, assigned_to = $6, updated_at = $7
			WHERE id = $8`,
		sqlDeleteTask:        `DELETE FROM tasks WHERE id = $1`,
		sqlCreateUser:        `INSERT INTO users (id, username, password, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		sqlGetUserByUsername: `SELECT id, username, password, name, created_at FROM users WHERE username = $1`,
		sqlGetUsersByIDs:     `SELECT id, username, name, created_at FROM users WHERE id = ANY($1)`,
		sqlListUsers:         `SELECT id, username, name, created_at FROM users ORDER BY username`,
	}
	log.Println("[SUCCESS] Соединение с базой данных установлено успешно")
	return s, nil
}

func (s *Storage) Close(_ context.Context) error {
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	task.ID = uuid.New().String()
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	_, err := s.pool.Exec(ctx, s.sqlCreateTask,
		task.ID, task.Title, task.Description, task.DueDate, task.Status,
		task.Priority, task.AssignedTo, task.CreatedBy, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Println("[ERROR] Не удалось создать задачу:", err)
		return err
	}
	log.Println("[SUCCESS] Задача успешно создана:", task.ID)
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	row := s.pool.QueryRow(ctx, s.sqlGetTaskByID, id)
	task := &models.Task{}
	if err := scanTask(row, task); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] Ошибка при получении задачи:", err)
		return nil, err
	}
	return task, nil
}

// ListTasks собирает запрос из обязательного предиката "вызывающий входит в
// assigned_to" и необязательных предикатов по статусу и приоритету, с
// сортировкой по времени создания (новые первыми) и оконной выборкой.
func (s *Storage) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"$1 = ANY(assigned_to)"}
	args := []interface{}{filter.AssigneeID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE "+cond, args...).Scan(&total); err != nil {
		log.Println("[ERROR] Не удалось посчитать задачи:", err)
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(`SELECT id, title, description, due_date, status, priority, assigned_to, created_by, created_at, updated_at
		FROM tasks WHERE %s ORDER BY created_at DESC OFFSET $%d LIMIT $%d`, cond, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, offset, filter.Limit)...)
	if err != nil {
		log.Println("[ERROR] Не удалось получить задачи:", err)
		return nil, 0, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task := models.Task{}
		if err := scanTask(rows, &task); err != nil {
			log.Println("[ERROR] Ошибка при чтении задач:", err)
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Println("[ERROR] Ошибка при чтении задач:", err)
		return nil, 0, err
	}
	log.Println("[SUCCESS] Получено задач:", len(tasks), "из", total)
	return tasks, total, nil
}

func (s *Storage) UpdateTask(ctx context.Context, id string, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	task.UpdatedAt = time.Now().UTC()
	ct, err := s.pool.Exec(ctx, s.sqlUpdateTask,
		task.Title, task.Description, task.DueDate, task.Status, task.Priority,
		task.AssignedTo, task.UpdatedAt, id)
	if err != nil {
		log.Println("[ERROR] Не удалось обновить задачу:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		log.Println("[ERROR] Задача для обновления не найдена:", id)
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Задача успешно обновлена:", id)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := s.pool.Exec(ctx, s.sqlDeleteTask, id)
	if err != nil {
		log.Println("[ERROR] Не удалось удалить задачу:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		log.Println("[ERROR] Задача для удаления не найдена:", id)
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Задача удалена:", id)
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, s.sqlCreateUser, user.ID, user.Username, user.Password, user.Name, user.CreatedAt)
	if err != nil {
		log.Println("[ERROR] Не удалось создать пользователя:", err)
		return errors.ErrUserAlreadyExists
	}
	log.Println("[SUCCESS] Пользователь успешно создан:", user.ID)
	return nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	row := s.pool.QueryRow(ctx, s.sqlGetUserByUsername, username)
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Name, &user.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Ошибка при получении пользователя:", err)
		return nil, err
	}
	return user, nil
}

// GetUsersByIDs возвращает публичные профили: пароль в выборку не входит.
func (s *Storage) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, s.sqlGetUsersByIDs, ids)
	if err != nil {
		log.Println("[ERROR] Не удалось получить пользователей:", err)
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user := models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &user.CreatedAt); err != nil {
			log.Println("[ERROR] Ошибка при чтении пользователей:", err)
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, s.sqlListUsers)
	if err != nil {
		log.Println("[ERROR] Не удалось получить список пользователей:", err)
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user := models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &user.CreatedAt); err != nil {
			log.Println("[ERROR] Ошибка при чтении списка пользователей:", err)
			return nil, err
		}
		users = append(users, user)
	}
	log.Println("[SUCCESS] Получено пользователей:", len(users))
	return users, rows.Err()
}

// DeleteUserCascade удаляет пользователя и каскадно все задачи, где он был
// создателем или исполнителем, в одной транзакции. Удаление несуществующего
// пользователя ошибкой не считается.
func (s *Storage) DeleteUserCascade(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		log.Println("[ERROR] Не удалось начать транзакцию удаления пользователя:", err)
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		_ = tx.Rollback(ctx)
		log.Println("[ERROR] Не удалось удалить пользователя:", err)
		return err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM tasks WHERE created_by = $1 OR $1 = ANY(assigned_to)`, id)
	if err != nil {
		_ = tx.Rollback(ctx)
		log.Println("[ERROR] Не удалось удалить задачи пользователя:", err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Println("[ERROR] Не удалось зафиксировать удаление пользователя:", err)
		return err
	}

	log.Println("[SUCCESS] Пользователь удален:", id, "вместе с задачами:", ct.RowsAffected())
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner, task *models.Task) error {
	return row.Scan(
		&task.ID, &task.Title, &task.Description, &task.DueDate, &task.Status,
		&task.Priority, &task.AssignedTo, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
}
