package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/riftfi/reactivation-backend/internal/model"
)

// UserRepositoryInterface defines the data source the batch runner consumes.
type UserRepositoryInterface interface {
	FetchUsersWithDetails(ctx context.Context) ([]model.User, error)
}

// UserRepository is the concrete Postgres implementation.
type UserRepository struct {
	DB *sql.DB
}

// Suspended accounts and accounts without a phone number are excluded at
// the query level: they are never eligible for outreach.
const fetchUsersQuery = `
    WITH user_onramp AS (
      SELECT
        user_id,
        COUNT(*) AS onramp_count,
        COALESCE(SUM(CASE WHEN amount IS NOT NULL THEN amount::numeric ELSE 0 END), 0) AS onramp_volume,
        MAX(created_at) AS last_onramp
      FROM "OnrampOrder"
      WHERE LOWER(status) IN ('complete', 'completed')
      GROUP BY user_id
    ),
    user_offramp AS (
      SELECT
        user_id,
        COUNT(*) AS offramp_count,
        COALESCE(SUM(amount::numeric), 0) AS offramp_volume,
        MAX(created_at) AS last_offramp
      FROM "OfframpOrder"
      WHERE LOWER(status) IN ('complete', 'completed')
      GROUP BY user_id
    ),
    user_referrals AS (
      SELECT
        u.id AS user_id,
        COUNT(referred.id) AS referral_count
      FROM users u
      LEFT JOIN users referred ON referred.referrer = u.referral_code
      WHERE u.referral_code IS NOT NULL
      GROUP BY u.id
    ),
    user_referral_earnings AS (
      SELECT
        referrer_user_id AS user_id,
        SUM(amount_local) AS total_earnings_kes
      FROM referral_fee_entries
      GROUP BY referrer_user_id
    )
    SELECT
      u.id,
      u.display_name,
      u.phone_number,
      u.email,
      u.kyc_verified,
      u.kyc_verified_at,
      u.created_at,
      COALESCE(uo.onramp_count, 0)::int AS onramp_count,
      COALESCE(uo.onramp_volume, 0)::text AS onramp_volume,
      uo.last_onramp,
      COALESCE(uoff.offramp_count, 0)::int AS offramp_count,
      COALESCE(uoff.offramp_volume, 0)::text AS offramp_volume,
      uoff.last_offramp,
      COALESCE(ur.referral_count, 0)::int AS referral_count,
      COALESCE(ure.total_earnings_kes, 0)::text AS referral_earnings_kes
    FROM users u
    LEFT JOIN user_onramp uo ON uo.user_id = u.id
    LEFT JOIN user_offramp uoff ON uoff.user_id = u.id
    LEFT JOIN user_referrals ur ON ur.user_id = u.id
    LEFT JOIN user_referral_earnings ure ON ure.user_id = u.id
    WHERE u.phone_number IS NOT NULL
      AND u.is_suspended = false
    ORDER BY u.created_at DESC
`

// FetchUsersWithDetails returns every eligible user with transaction and
// referral aggregates. Errors here are fatal to a batch run.
func (r *UserRepository) FetchUsersWithDetails(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, fetchUsersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var (
			u                model.User
			displayName      sql.NullString
			email            sql.NullString
			kycVerifiedAt    sql.NullTime
			onrampVolume     sql.NullString
			lastOnramp       sql.NullTime
			offrampVolume    sql.NullString
			lastOfframp      sql.NullTime
			referralEarnings sql.NullString
		)
		if err := rows.Scan(
			&u.ID,
			&displayName,
			&u.PhoneNumber,
			&email,
			&u.KYCVerified,
			&kycVerifiedAt,
			&u.CreatedAt,
			&u.OnrampCount,
			&onrampVolume,
			&lastOnramp,
			&u.OfframpCount,
			&offrampVolume,
			&lastOfframp,
			&u.ReferralCount,
			&referralEarnings,
		); err != nil {
			return nil, err
		}

		u.DisplayName = displayName.String
		u.Email = email.String
		if kycVerifiedAt.Valid {
			t := kycVerifiedAt.Time
			u.KYCVerifiedAt = &t
		}
		if lastOnramp.Valid {
			t := lastOnramp.Time
			u.LastOnramp = &t
		}
		if lastOfframp.Valid {
			t := lastOfframp.Time
			u.LastOfframp = &t
		}
		u.OnrampVolume = parseVolume(onrampVolume)
		u.OfframpVolume = parseVolume(offrampVolume)
		u.ReferralEarningsKES = parseVolume(referralEarnings)

		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// parseVolume degrades non-numeric or NULL amounts to zero instead of
// failing the whole fetch.
func parseVolume(s sql.NullString) decimal.Decimal {
	if !s.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
