package leave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

func newDirectory(t *testing.T, emps ...leave.Employee) *memory.Store {
	t.Helper()
	store := memory.New(leave.DefaultPolicy())
	for _, e := range emps {
		require.NoError(t, store.SaveEmployee(context.Background(), e))
	}
	return store
}

func TestResolver_EmailOnlyCaseInsensitive(t *testing.T) {
	// GIVEN: Directory has "Alice.Doe@Example.com"
	// WHEN: Session carries only "alice.doe@example.COM"
	// THEN: Alice's id is returned
	r := leave.NewResolver(newDirectory(t, bob, alice))

	emp, err := r.Resolve(context.Background(), leave.Session{Email: "alice.doe@example.COM"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, emp.ID)
}

func TestResolver_Order(t *testing.T) {
	r := leave.NewResolver(newDirectory(t, alice, bob, leave.Employee{ID: "auth-77", Name: "Carol", Email: "carol@example.com"}))
	ctx := context.Background()

	tests := []struct {
		name    string
		session leave.Session
		want    generic.EntityID
	}{
		{"explicit id wins over email", leave.Session{EmployeeID: bob.ID, Email: alice.Email}, bob.ID},
		{"unknown explicit id falls through to email", leave.Session{EmployeeID: "gone", Email: "bob@example.com"}, bob.ID},
		{"email wins over directory id", leave.Session{Email: "bob@example.com", UserID: "auth-77"}, bob.ID},
		{"directory id last", leave.Session{Email: "nobody@example.com", UserID: "auth-77"}, "auth-77"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp, err := r.Resolve(ctx, tt.session)
			require.NoError(t, err)
			assert.Equal(t, tt.want, emp.ID)
		})
	}
}

func TestResolver_UnresolvedNeverPicksFirstEmployee(t *testing.T) {
	r := leave.NewResolver(newDirectory(t, alice, bob))

	emp, err := r.Resolve(context.Background(), leave.Session{Email: "stranger@example.com"})
	assert.Nil(t, emp)
	assert.ErrorIs(t, err, generic.ErrEmployeeNotLinked)

	_, err = r.Resolve(context.Background(), leave.Session{})
	assert.ErrorIs(t, err, generic.ErrEmployeeNotLinked)
}

type failingDirectory struct{ leave.Directory }

func (failingDirectory) ResolveByID(context.Context, generic.EntityID) (*leave.Employee, error) {
	return nil, errors.New("directory offline")
}

func TestResolver_DirectoryErrorsPropagate(t *testing.T) {
	r := leave.NewResolver(failingDirectory{})

	_, err := r.Resolve(context.Background(), leave.Session{EmployeeID: "emp-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrEmployeeNotLinked)
	assert.Contains(t, err.Error(), "explicit_id")
}
