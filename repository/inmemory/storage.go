package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/google/uuid"
)

// Storage хранит всё в памяти. Используется как dev-бэкенд (-storage memory)
// и в тестах; семантика операций повторяет репозиторий на Postgres.
type Storage struct {
	mu      sync.RWMutex
	users   map[string]models.User
	tasks   map[string]models.Task
	seq     map[string]uint64
	nextSeq uint64
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
		seq:   make(map[string]uint64),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return errors.ErrUserAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []models.User{}
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			user.Password = ""
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *Storage) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []models.User{}
	for _, user := range s.users {
		user.Password = ""
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Storage) DeleteUserCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for taskID, task := range s.tasks {
		if task.CreatedBy == id || contains(task.AssignedTo, id) {
			delete(s.tasks, taskID)
			delete(s.seq, taskID)
		}
	}
	return nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = uuid.New().String()
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.nextSeq++
	s.seq[task.ID] = s.nextSeq
	s.tasks[task.ID] = *task
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[id]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	return &task, nil
}

func (s *Storage) ListTasks(_ context.Context, filter models.TaskFilter) ([]models.Task, int, error) {
	if filter.Page < 1 || filter.Limit < 0 {
		return nil, 0, errors.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []models.Task{}
	for _, task := range s.tasks {
		if !contains(task.AssignedTo, filter.AssigneeID) {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		matched = append(matched, task)
	}

	// новые первыми; при равных метках времени решает порядок вставки
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return s.seq[matched[i].ID] > s.seq[matched[j].ID]
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := (filter.Page - 1) * filter.Limit
	if offset >= total {
		return []models.Task{}, total, nil
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *Storage) UpdateTask(_ context.Context, id string, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	task.ID = id
	task.UpdatedAt = time.Now().UTC()
	s.tasks[id] = *task
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	delete(s.tasks, id)
	delete(s.seq, id)
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
