package account

import (
	"context"
	"errors"
	"testing"
)

// MockRepository implements Repository
type MockRepository struct {
	GetByIDFunc             func(ctx context.Context, id int64) (*Account, error)
	FindByResourceIDFunc    func(ctx context.Context, resourceID string) (*Account, error)
	ListByUserIDFunc        func(ctx context.Context, userID int64) ([]*Account, error)
	ListByRequisitionIDFunc func(ctx context.Context, requisitionID int64) ([]*Account, error)
	SaveReconciledFunc      func(ctx context.Context, batch []UpsertParams) ([]*Account, error)
	DeleteFunc              func(ctx context.Context, id int64) error
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}
func (m *MockRepository) FindByResourceID(ctx context.Context, resourceID string) (*Account, error) {
	if m.FindByResourceIDFunc != nil {
		return m.FindByResourceIDFunc(ctx, resourceID)
	}
	return nil, nil
}
func (m *MockRepository) ListByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}
func (m *MockRepository) ListByRequisitionID(ctx context.Context, requisitionID int64) ([]*Account, error) {
	if m.ListByRequisitionIDFunc != nil {
		return m.ListByRequisitionIDFunc(ctx, requisitionID)
	}
	return nil, nil
}
func (m *MockRepository) SaveReconciled(ctx context.Context, batch []UpsertParams) ([]*Account, error) {
	if m.SaveReconciledFunc != nil {
		return m.SaveReconciledFunc(ctx, batch)
	}
	return nil, nil
}
func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func TestGetAccount(t *testing.T) {
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
			return &Account{ID: id, UserID: 1, Name: "Checking"}, nil
		},
	}
	service := NewService(repo)

	acc, err := service.GetAccount(context.Background(), 42, 1)
	if err != nil {
		t.Fatalf("GetAccount() failed: %v", err)
	}
	if acc.ID != 42 {
		t.Errorf("ID = %d, want 42", acc.ID)
	}
}

func TestGetAccount_Forbidden(t *testing.T) {
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
			return &Account{ID: id, UserID: 99}, nil
		},
	}
	service := NewService(repo)

	_, err := service.GetAccount(context.Background(), 42, 1)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	service := NewService(&MockRepository{})
	_, err := service.GetAccount(context.Background(), 42, 1)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestListAccountsByUserID(t *testing.T) {
	repo := &MockRepository{
		ListByUserIDFunc: func(ctx context.Context, userID int64) ([]*Account, error) {
			return []*Account{{ID: 1, UserID: userID}, {ID: 2, UserID: userID}}, nil
		},
	}
	service := NewService(repo)

	accounts, err := service.ListAccountsByUserID(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListAccountsByUserID() failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("got %d accounts, want 2", len(accounts))
	}
}

func TestListAccountsByUserID_InvalidUserID(t *testing.T) {
	service := NewService(&MockRepository{})
	if _, err := service.ListAccountsByUserID(context.Background(), 0); err == nil {
		t.Error("expected error for user ID 0")
	}
}

func TestDeleteAccount(t *testing.T) {
	deleted := int64(0)
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
			return &Account{ID: id, UserID: 1}, nil
		},
		DeleteFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	service := NewService(repo)

	if err := service.DeleteAccount(context.Background(), 42, 1); err != nil {
		t.Fatalf("DeleteAccount() failed: %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted ID = %d, want 42", deleted)
	}
}

func TestDeleteAccount_Forbidden(t *testing.T) {
	deleteCalled := false
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*Account, error) {
			return &Account{ID: id, UserID: 99}, nil
		},
		DeleteFunc: func(ctx context.Context, id int64) error {
			deleteCalled = true
			return nil
		},
	}
	service := NewService(repo)

	err := service.DeleteAccount(context.Background(), 42, 1)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
	if deleteCalled {
		t.Error("Delete was called for a foreign account")
	}
}
