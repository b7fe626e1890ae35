package service

import (
	"testing"
	"time"

	"grocery-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCustomer() NewUser {
	return NewUser{
		Username: "jane.doe",
		Password: "orchard42",
		Address:  "12 Elm Road",
		Phone:    "+90 555 123 4567",
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, defaultBusiness())

	for name, mutate := range map[string]func(*NewUser){
		"short username":    func(u *NewUser) { u.Username = "jd" },
		"bad username":      func(u *NewUser) { u.Username = "jane doe" },
		"short password":    func(u *NewUser) { u.Password = "a1" },
		"password no digit": func(u *NewUser) { u.Password = "orchardsss" },
		"bad phone":         func(u *NewUser) { u.Phone = "12ab" },
		"no address":        func(u *NewUser) { u.Address = " " },
		"no phone":          func(u *NewUser) { u.Phone = "" },
	} {
		t.Run(name, func(t *testing.T) {
			in := validCustomer()
			mutate(&in)
			_, err := f.users.Register(f.ctx, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	in := validCustomer()
	in.Role = models.RoleOwner
	u, err := f.users.Register(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, u.Role, "self-registration always yields a customer")
	assert.Equal(t, "+905551234567", u.Phone)
	assert.NotEqual(t, in.Password, u.PasswordHash)

	_, err = f.users.Register(f.ctx, validCustomer())
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestLoginAndParseToken(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	u, err := f.users.Register(f.ctx, validCustomer())
	require.NoError(t, err)

	_, _, err = f.users.Login(f.ctx, "jane.doe", "wrong-pass1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, _, err = f.users.Login(f.ctx, "nobody", "orchard42")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	token, who, err := f.users.Login(f.ctx, "jane.doe", "orchard42")
	require.NoError(t, err)
	assert.Equal(t, u.ID, who.ID)

	actor, err := f.users.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: u.ID, Role: models.RoleCustomer}, actor)

	_, err = f.users.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.users.ParseToken(token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "token expired")
}

func TestOwnerManagesCarriers(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	alice := f.customer("alice")

	_, err := f.users.Create(f.ctx, alice, NewUser{Username: "carl", Password: "wheels123", Role: models.RoleCarrier})
	assert.ErrorIs(t, err, ErrForbidden)

	carl, err := f.users.Create(f.ctx, f.owner, NewUser{Username: "carl", Password: "wheels123", Role: models.RoleCarrier})
	require.NoError(t, err)
	dana, err := f.users.Create(f.ctx, f.owner, NewUser{Username: "dana", Password: "wheels456", Role: models.RoleCarrier})
	require.NoError(t, err)

	carriers, err := f.users.ListCarriers(f.ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, carriers, 2)
	assert.Equal(t, "carl", carriers[0].Username)

	p := f.product("Turnip", models.UnitKg, "2", "10", "1")
	order := f.placed(alice, p, "1")
	ok, err := f.orders.AssignOrderToCarrier(f.ctx, order.ID, carl.ID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, f.users.DeleteCarrier(f.ctx, f.owner, carl.ID), ErrInUse)
	require.NoError(t, f.users.DeleteCarrier(f.ctx, f.owner, dana.ID))
	assert.ErrorIs(t, f.users.DeleteCarrier(f.ctx, f.owner, dana.ID), ErrNotFound)
	assert.ErrorIs(t, f.users.DeleteCarrier(f.ctx, f.owner, alice.UserID), ErrNotFound, "only carriers are deleted")

	got, err := f.users.GetByID(f.ctx, carl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCarrier, got.Role)

	// a carrier whose work is done still anchors its orders and ratings
	erin := f.carrier("erin")
	done := f.delivered(alice, erin, p, "1")
	_, err = f.ratings.RateCarrier(f.ctx, done.ID, alice.UserID, 5, "quick")
	require.NoError(t, err)

	assert.ErrorIs(t, f.users.DeleteCarrier(f.ctx, f.owner, erin.UserID), ErrInUse)

	ratings, err := f.ratings.ListCarrierRatings(f.ctx, erin.UserID)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
	kept, err := f.st.GetOrder(f.ctx, done.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.CarrierID)
	assert.Equal(t, erin.UserID, *kept.CarrierID)
}
