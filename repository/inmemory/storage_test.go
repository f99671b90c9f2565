package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	err := s.CreateUser(ctx, &models.User{Username: "alice", Password: "hash", Name: "Alice"})
	require.NoError(t, err)

	err = s.CreateUser(ctx, &models.User{Username: "alice", Password: "other", Name: "Impostor"})
	assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)

	user, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	s := NewStorage()
	_, err := s.GetUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestListUsersStripsPasswords(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "bob", Password: "hash-b"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "alice", Password: "hash-a"}))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	// сортировка по имени пользователя, пароли вычищены
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	for _, u := range users {
		assert.Empty(t, u.Password)
	}
}

func TestGetUsersByIDs(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	alice := &models.User{ID: "id-a", Username: "alice", Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, alice))

	users, err := s.GetUsersByIDs(ctx, []string{"id-a", "missing"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Empty(t, users[0].Password)
}

func TestTaskLifecycle(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	task := &models.Task{
		Title:      "X",
		DueDate:    time.Now().Add(time.Hour),
		Status:     "pending",
		Priority:   "medium",
		AssignedTo: []string{"id-a"},
		CreatedBy:  "id-a",
	}
	require.NoError(t, s.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)

	fetched, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", fetched.Title)

	fetched.Status = "completed"
	require.NoError(t, s.UpdateTask(ctx, task.ID, fetched))

	updated, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", updated.Status)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTaskByID(ctx, task.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestUpdateMissingTask(t *testing.T) {
	s := NewStorage()
	err := s.UpdateTask(context.Background(), "ghost", &models.Task{Title: "X"})
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestDeleteMissingTask(t *testing.T) {
	s := NewStorage()
	err := s.DeleteTask(context.Background(), "ghost")
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestListTasks(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	seed := []struct {
		assignee string
		status   string
		priority string
	}{
		{"id-a", "pending", "low"},
		{"id-a", "pending", "high"},
		{"id-a", "completed", "high"},
		{"id-b", "pending", "medium"},
	}
	for i, sp := range seed {
		require.NoError(t, s.CreateTask(ctx, &models.Task{
			Title:      fmt.Sprintf("task-%d", i),
			DueDate:    time.Now().Add(time.Hour),
			Status:     sp.status,
			Priority:   sp.priority,
			AssignedTo: []string{sp.assignee},
			CreatedBy:  sp.assignee,
		}))
	}

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   struct {
			total int
			items int
			err   error
		}
	}{
		{
			name:   "assignee scope only",
			filter: models.TaskFilter{AssigneeID: "id-a", Page: 1, Limit: 10},
			want:   struct{ total, items int; err error }{total: 3, items: 3},
		},
		{
			name:   "status filter",
			filter: models.TaskFilter{AssigneeID: "id-a", Status: "pending", Page: 1, Limit: 10},
			want:   struct{ total, items int; err error }{total: 2, items: 2},
		},
		{
			name:   "priority filter",
			filter: models.TaskFilter{AssigneeID: "id-a", Priority: "high", Page: 1, Limit: 10},
			want:   struct{ total, items int; err error }{total: 2, items: 2},
		},
		{
			name:   "combined filters",
			filter: models.TaskFilter{AssigneeID: "id-a", Status: "completed", Priority: "high", Page: 1, Limit: 10},
			want:   struct{ total, items int; err error }{total: 1, items: 1},
		},
		{
			name:   "other assignee",
			filter: models.TaskFilter{AssigneeID: "id-b", Page: 1, Limit: 10},
			want:   struct{ total, items int; err error }{total: 1, items: 1},
		},
		{
			name:   "window beyond the end is empty but keeps the total",
			filter: models.TaskFilter{AssigneeID: "id-a", Page: 5, Limit: 10},
			want:   struct{ total, items int; err error }{total: 3, items: 0},
		},
		{
			name:   "page below one is rejected",
			filter: models.TaskFilter{AssigneeID: "id-a", Page: 0, Limit: 10},
			want:   struct{ total, items int; err error }{err: errors.ErrInvalidInput},
		},
		{
			name:   "negative limit is rejected",
			filter: models.TaskFilter{AssigneeID: "id-a", Page: 1, Limit: -1},
			want:   struct{ total, items int; err error }{err: errors.ErrInvalidInput},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, total, err := s.ListTasks(ctx, tt.filter)
			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.total, total)
			assert.Len(t, tasks, tt.want.items)
		})
	}
}

func TestListTasksOrderingAndWindow(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		task := &models.Task{
			Title:      fmt.Sprintf("task-%d", i),
			DueDate:    time.Now().Add(time.Hour),
			Status:     "pending",
			Priority:   "medium",
			AssignedTo: []string{"id-a"},
			CreatedBy:  "id-a",
		}
		require.NoError(t, s.CreateTask(ctx, task))
		ids = append(ids, task.ID)
	}

	// новые первыми; при равных CreatedAt побеждает позже вставленная
	tasks, total, err := s.ListTasks(ctx, models.TaskFilter{AssigneeID: "id-a", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, tasks, 5)
	for i := range tasks {
		assert.Equal(t, ids[len(ids)-1-i], tasks[i].ID)
	}

	window, total, err := s.ListTasks(ctx, models.TaskFilter{AssigneeID: "id-a", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, window, 2)
	assert.Equal(t, ids[2], window[0].ID)
	assert.Equal(t, ids[1], window[1].ID)
}

func TestDeleteUserCascade(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "id-a", Username: "alice"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "id-b", Username: "bob"}))

	created := &models.Task{Title: "created by a", AssignedTo: []string{"id-b"}, CreatedBy: "id-a"}
	assigned := &models.Task{Title: "assigned to a", AssignedTo: []string{"id-a", "id-b"}, CreatedBy: "id-b"}
	untouched := &models.Task{Title: "only b", AssignedTo: []string{"id-b"}, CreatedBy: "id-b"}
	for _, task := range []*models.Task{created, assigned, untouched} {
		require.NoError(t, s.CreateTask(ctx, task))
	}

	require.NoError(t, s.DeleteUserCascade(ctx, "id-a"))

	_, err := s.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)

	_, err = s.GetTaskByID(ctx, created.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
	_, err = s.GetTaskByID(ctx, assigned.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
	_, err = s.GetTaskByID(ctx, untouched.ID)
	assert.NoError(t, err)

	// каскад для несуществующего пользователя проходит молча
	assert.NoError(t, s.DeleteUserCascade(ctx, "ghost"))
}
