package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{
	"id", "display_name", "phone_number", "email", "kyc_verified",
	"kyc_verified_at", "created_at", "onramp_count", "onramp_volume",
	"last_onramp", "offramp_count", "offramp_volume", "last_offramp",
	"referral_count", "referral_earnings_kes",
}

func TestFetchUsersWithDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	lastOnramp := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(userColumns).
		AddRow("u1", "Wanjiku Kamau", "0711234567", "w@x.co", true,
			created, created, 3, "1500.50", lastOnramp, 1, "200.00", nil, 2, "45.75").
		AddRow("u2", nil, "0722000000", nil, false,
			nil, created, 0, "0", nil, 0, "0", nil, 0, "0")

	mock.ExpectQuery("WITH user_onramp AS").WillReturnRows(rows)

	repo := &UserRepository{DB: db}
	users, err := repo.FetchUsersWithDetails(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	u := users[0]
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Wanjiku Kamau", u.DisplayName)
	assert.True(t, u.KYCVerified)
	assert.Equal(t, 3, u.OnrampCount)
	assert.Equal(t, "1500.5", u.OnrampVolume.String())
	require.NotNil(t, u.LastOnramp)
	assert.True(t, u.LastOnramp.Equal(lastOnramp))
	assert.Nil(t, u.LastOfframp)
	assert.Equal(t, "45.75", u.ReferralEarningsKES.String())

	u2 := users[1]
	assert.Equal(t, "", u2.DisplayName)
	assert.False(t, u2.KYCVerified)
	assert.Nil(t, u2.KYCVerifiedAt)
	assert.True(t, u2.OnrampVolume.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUsersBadVolumeDegradesToZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Now()
	rows := sqlmock.NewRows(userColumns).
		AddRow("u1", "A B", "0711234567", "", true,
			nil, created, 2, "not-a-number", nil, 0, "0", nil, 0, "0")
	mock.ExpectQuery("WITH user_onramp AS").WillReturnRows(rows)

	repo := &UserRepository{DB: db}
	users, err := repo.FetchUsersWithDetails(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].OnrampVolume.IsZero())
}

func TestFetchUsersQueryErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WITH user_onramp AS").WillReturnError(errors.New("connection refused"))

	repo := &UserRepository{DB: db}
	_, err = repo.FetchUsersWithDetails(context.Background())
	assert.Error(t, err)
}
