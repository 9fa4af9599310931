package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "platform", "external_id", "arm_id", "format", "hook_type", "topic",
		"content", "published_at", "learned_at",
		"flag_duplicate", "flag_low_quality", "flag_over_posting",
	})
}

func TestPublishedRepoListUnlearned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Now().Add(-48 * time.Hour)
	mock.ExpectQuery("FROM published_posts").
		WithArgs(since).
		WillReturnRows(publishedRows().AddRow(
			"p1", "x", "1234", "x:listicle:curiosity:kei_trucks:any:morning:monday:any",
			"listicle", "curiosity", "kei_trucks",
			"5 kei truck mods", time.Now().Add(-30*time.Hour), nil,
			false, false, false))

	posts, err := NewPublishedRepo(db).ListUnlearned(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Nil(t, posts[0].LearnedAt)
}

func TestPublishedRepoMarkLearned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec("UPDATE published_posts SET learned_at").
		WithArgs(at, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPublishedRepo(db).MarkLearned(context.Background(), "p1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishedRepoMarkLearnedTwiceFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec("UPDATE published_posts SET learned_at").
		WithArgs(at, "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPublishedRepo(db).MarkLearned(context.Background(), "p1", at)
	assert.Error(t, err)
}

func TestMetricsRepoSnapshotAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM post_metrics").
		WithArgs("p1", 24).
		WillReturnRows(sqlmock.NewRows([]string{
			"published_post_id", "hours_after_publish", "impression_count", "collected_at",
		}))

	snap, err := NewMetricsRepo(db).Snapshot(context.Background(), "p1", 24)
	require.NoError(t, err)
	assert.Nil(t, snap, "missing snapshot must be (nil, nil), not an error")
}

func TestMetricsRepoSnapshotPresent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM post_metrics").
		WithArgs("p1", 24).
		WillReturnRows(sqlmock.NewRows([]string{
			"published_post_id", "hours_after_publish", "impression_count", "collected_at",
		}).AddRow("p1", 24, int64(1500), time.Now()))

	snap, err := NewMetricsRepo(db).Snapshot(context.Background(), "p1", 24)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(1500), snap.ImpressionCount)
}
