package container

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gospc/adapters/memory"
	"gospc/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Solver: config.SolverConfig{SampleSize: 12, DateLayout: "2006-01-02", Workers: 3},
	}
}

func TestNew_MemoryStores(t *testing.T) {
	c, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)

	assert.IsType(t, &memory.StagingStore{}, c.StagingRepo)
	assert.IsType(t, &memory.AnalysisStore{}, c.AnalysisRepo)
	assert.NotNil(t, c.Metrics)
	require.NotNil(t, c.AnalysisService)

	cfg := c.AnalysisService.Config()
	assert.Equal(t, 12, cfg.SampleSize)
	assert.Equal(t, 3, cfg.Workers)
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpen_WithoutDatabase(t *testing.T) {
	c, err := Open(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, c.DB)
}

func TestInitWithDatabase(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")

	c, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.InitWithDatabase(db))

	_, isMemory := c.AnalysisRepo.(*memory.AnalysisStore)
	assert.False(t, isMemory)
	assert.Error(t, c.InitWithDatabase(nil))

	mock.ExpectClose()
	require.NoError(t, c.Shutdown(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
