// internal/vault/postgres_test.go
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool { return f(v) }

var anyTime = ArgumentMatcherFunc(func(v interface{}) bool {
	_, ok := v.(time.Time)
	return ok
})

func jsonEq(want string) ArgumentMatcherFunc {
	return func(v interface{}) bool {
		// Any named []byte, such as jsoniter.RawMessage, is accepted.
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Uint8 {
			return false
		}
		raw := rv.Bytes()
		var a, b interface{}
		if json.Unmarshal(raw, &a) != nil || json.Unmarshal([]byte(want), &b) != nil {
			return false
		}
		return assert.ObjectsAreEqual(a, b)
	}
}

const (
	sqlCreate = `CREATE TABLE IF NOT EXISTS "ghostpay_kv" ( key TEXT PRIMARY KEY, value JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL )`
	sqlSelect = `SELECT value FROM "ghostpay_kv" WHERE key = $1`
	sqlUpsert = `INSERT INTO "ghostpay_kv" (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

func newMockKV(t *testing.T) (*PostgresKV, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreate)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	kv, err := NewPostgresKV(context.Background(), mockPool, "ghostpay_kv", zaptest.NewLogger(t))
	require.NoError(t, err)
	return kv, mockPool
}

func TestPostgresKV_GetPut(t *testing.T) {
	kv, mockPool := newMockKV(t)
	ctx := context.Background()

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelect)).
		WithArgs(KeyCards).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[{"id":"c1"}]`)))
	raw, err := kv.Get(ctx, KeyCards)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"c1"}]`, string(raw))

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsert)).
		WithArgs(KeyHistory, jsonEq(`[]`), anyTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, kv.Put(ctx, KeyHistory, []byte(`[]`)))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresKV_MissingKey(t *testing.T) {
	kv, mockPool := newMockKV(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelect)).
		WithArgs(KeyHistory).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	_, err := kv.Get(context.Background(), KeyHistory)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresKV_VaultRoundTrip(t *testing.T) {
	kv, mockPool := newMockKV(t)
	v := New(kv, zaptest.NewLogger(t))
	v.newID = func() string { return "c1" }

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelect)).
		WithArgs(KeyCards).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsert)).
		WithArgs(KeyCards, jsonEq(`[{"id":"c1","bankName":"Axis","number":"4598123456789012","name":"Asha Rao","expiry":"08/28","email":"a@b.com","phone":"9876543210"}]`), anyTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := v.AddCard(context.Background(), sampleCard())
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresKV_Errors(t *testing.T) {
	kv, mockPool := newMockKV(t)
	boom := errors.New("connection reset")

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelect)).WithArgs(KeyCards).WillReturnError(boom)
	_, err := kv.Get(context.Background(), KeyCards)
	assert.ErrorIs(t, err, boom)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsert)).WithArgs(KeyCards, jsonEq(`[]`), anyTime).WillReturnError(boom)
	assert.ErrorIs(t, kv.Put(context.Background(), KeyCards, []byte(`[]`)), boom)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestNewPostgresKV_SchemaFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreate)).WillReturnError(errors.New("permission denied"))
	_, err = NewPostgresKV(context.Background(), mockPool, "ghostpay_kv", zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "permission denied")
}
