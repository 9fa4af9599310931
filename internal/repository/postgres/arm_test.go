package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/bandit"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

func armRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"arm_id", "platform", "format", "hook_type", "topic", "length_bucket",
		"time_bucket", "day_of_week", "emoji_density",
		"alpha", "beta", "total_reward", "pull_count", "source", "updated_at",
	})
}

func TestArmRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	armID := "x:listicle:curiosity:kei_trucks:any:morning:monday:any"
	mock.ExpectQuery("SELECT (.+) FROM bandit_arms WHERE arm_id").
		WithArgs(armID).
		WillReturnRows(armRows().AddRow(
			armID, "x", "listicle", "curiosity", "kei_trucks", "any",
			"morning", "monday", "any",
			3.5, 2.0, 2.5, 4, "self_learning", time.Now()))

	arm, err := NewArmRepo(db).Get(context.Background(), armID)
	require.NoError(t, err)
	assert.Equal(t, armID, arm.ArmID)
	assert.Equal(t, 3.5, arm.Alpha)
	assert.Equal(t, int64(4), arm.PullCount)
	assert.Equal(t, domain.ArmSourceSelfLearning, arm.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArmRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM bandit_arms WHERE arm_id").
		WithArgs("missing").
		WillReturnRows(armRows())

	_, err = NewArmRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, bandit.ErrArmNotFound)
}

func TestArmRepoUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	arm := &domain.Arm{
		ArmID:    "x:question:empathy:van_life:any:evening:friday:any",
		Platform: "x", Format: "question", HookType: "empathy", Topic: "van_life",
		LengthBucket: "any", TimeBucket: "evening", DayOfWeek: "friday", EmojiDensity: "any",
		Alpha: 2.1, Beta: 1.9, TotalReward: 1.1, PullCount: 2,
		Source: domain.ArmSourceExternalPatterns,
	}
	mock.ExpectExec("INSERT INTO bandit_arms").
		WithArgs(arm.ArmID, arm.Platform, arm.Format, arm.HookType, arm.Topic,
			arm.LengthBucket, arm.TimeBucket, arm.DayOfWeek, arm.EmojiDensity,
			arm.Alpha, arm.Beta, arm.TotalReward, arm.PullCount, string(arm.Source)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewArmRepo(db).Upsert(context.Background(), arm))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArmRepoTotalPulls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(42)))

	total, err := NewArmRepo(db).TotalPulls(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
}
