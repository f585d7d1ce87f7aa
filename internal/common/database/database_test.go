// internal/common/database/database_test.go
package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"career-predictor/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedOutput struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

func createTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_JSONRoundTrip(t *testing.T) {
	mr, client := createTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	var out cachedOutput
	found, err := client.GetJSON(ctx, "prediction:abc", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetJSON(ctx, "prediction:abc", cachedOutput{Prediction: 1, Probability: 0.8}, time.Minute))
	assert.True(t, mr.Exists("prediction:abc"))
	assert.Equal(t, time.Minute, mr.TTL("prediction:abc"))

	found, err = client.GetJSON(ctx, "prediction:abc", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, out.Prediction)
	assert.InDelta(t, 0.8, out.Probability, 1e-9)

	mr.FastForward(2 * time.Minute)
	found, err = client.GetJSON(ctx, "prediction:abc", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisClient_CorruptValue(t *testing.T) {
	mr, client := createTestRedis(t)
	require.NoError(t, mr.Set("prediction:bad", "not-json"))

	var out cachedOutput
	found, err := client.GetJSON(context.Background(), "prediction:bad", &out)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestRedisClient_PingFailsWhenServerDown(t *testing.T) {
	mr, client := createTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, client.Ping(ctx))
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()))
}

func TestConnectRedis_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := ConnectRedis(ctx, config.RedisConfig{Address: addr})
	assert.Error(t, err)
	assert.Nil(t, client)
}

// ==========================
// Failed connections are released
// ==========================

func TestPingOrClose_ClosesUnreachableRedis(t *testing.T) {
	mr, client := createTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, pingOrClose(ctx, client))

	err := client.Client.Ping(context.Background()).Err()
	assert.ErrorIs(t, err, redis.ErrClosed)
}

func TestPingOrClose_ClosesUnreachablePostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	err = pingOrClose(context.Background(), &PostgresClient{DB: db})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres ping failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingOrClose_KeepsHealthyPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	require.NoError(t, pingOrClose(context.Background(), &PostgresClient{DB: db}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectPostgres_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := ConnectPostgres(ctx, config.PostgresConfig{
		Host: "127.0.0.1", Port: 1, User: "u", Password: "p",
		Database: "careers", SSLMode: "disable", MaxConnections: 2, MaxIdle: 1,
	})
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	client := &PostgresClient{DB: db}
	mock.ExpectPing()
	mock.ExpectClose()

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_OpensLazily(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		Database: "careers", SSLMode: "disable", MaxConnections: 5, MaxIdle: 2,
	})
	require.NoError(t, err)
	assert.NotNil(t, client.DB)
	assert.NoError(t, client.Close())
}

func TestElasticsearchClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestElasticsearchClient_PingErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.Error(t, client.Ping(context.Background()))
}

func TestNewElasticsearch_RequiresAddress(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}
