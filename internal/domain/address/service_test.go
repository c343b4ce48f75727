package address

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/pkg/nullable"
)

// --- Mock implementations ---

type passTx struct{ calls int }

func (p *passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type mockRepo struct {
	rows   map[int64]*Address
	nextID int64
}

func newMockRepo() *mockRepo { return &mockRepo{rows: map[int64]*Address{}} }

func (m *mockRepo) Create(_ context.Context, a *Address) error {
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, owner auth.Principal, id int64) (*Address, error) {
	a, ok := m.rows[id]
	if !ok || a.Owner != owner {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, owner auth.Principal) ([]Address, error) {
	var out []Address
	for _, a := range m.rows {
		if a.Owner == owner {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, a *Address) error {
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, owner auth.Principal, id int64) error {
	a, ok := m.rows[id]
	if !ok || a.Owner != owner {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *mockRepo) ClearDefault(_ context.Context, owner auth.Principal) error {
	for _, a := range m.rows {
		if a.Owner == owner {
			a.IsDefault = false
		}
	}
	return nil
}

func (m *mockRepo) defaults(owner auth.Principal) []int64 {
	var ids []int64
	for _, a := range m.rows {
		if a.Owner == owner && a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// --- Tests ---

var (
	alice = auth.Principal{ID: 1, Role: auth.RoleCustomer}
	bob   = auth.Principal{ID: 2, Role: auth.RoleCustomer}
)

func TestAdd_SingleDefault(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &passTx{})
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Cairo", IsDefault: true}))
	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Giza", IsDefault: true}))
	require.NoError(t, svc.Add(ctx, &Address{Owner: bob, City: "Alexandria", IsDefault: true}))

	assert.Equal(t, []int64{2}, repo.defaults(alice))
	assert.Equal(t, []int64{3}, repo.defaults(bob))

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Giza", list[0].City)
}

func TestGet_OtherOwner(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &passTx{})
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Cairo"}))

	_, err := svc.Get(ctx, bob, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, bob, 1), ErrNotFound)
}

func TestUpdate(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &passTx{})
	ctx := context.Background()
	label := "Home"
	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Cairo", Label: &label, IsDefault: true}))
	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Giza"}))

	a, err := svc.Update(ctx, alice, 2, Patch{
		City:      nullable.Of("New Giza"),
		IsDefault: nullable.Of(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "New Giza", a.City)
	assert.Equal(t, []int64{2}, repo.defaults(alice))

	a, err = svc.Update(ctx, alice, 1, Patch{Label: nullable.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, a.Label)
	assert.Equal(t, "Cairo", a.City)

	_, err = svc.Update(ctx, bob, 1, Patch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetDefault(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &passTx{})
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Cairo", IsDefault: true}))
	require.NoError(t, svc.Add(ctx, &Address{Owner: alice, City: "Giza"}))

	a, err := svc.SetDefault(ctx, alice, 2)
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	assert.Equal(t, []int64{2}, repo.defaults(alice))
}
