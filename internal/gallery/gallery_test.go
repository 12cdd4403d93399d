package gallery

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Napakamol/ThailandChatbot/internal/logging"
)

var lookupQuery = regexp.QuoteMeta(`SELECT * FROM "place_images" WHERE LOWER(name) = LOWER($1)`)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logging.NewGormLogger(nil),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(db, nil), mock
}

func TestRepository_LookupFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(lookupQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "url", "description"}).
			AddRow(1, "Phuket", "https://example.com/phuket.jpg", "Patong Beach"))

	img, err := repo.Lookup(context.Background(), "phuket")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "https://example.com/phuket.jpg", img.URL)
	assert.Equal(t, "Patong Beach", img.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LookupNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(lookupQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "url", "description"}))

	img, err := repo.Lookup(context.Background(), "Atlantis")
	assert.NoError(t, err)
	assert.Nil(t, img)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LookupError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(lookupQuery).WillReturnError(errors.New("connection reset"))

	img, err := repo.Lookup(context.Background(), "Krabi")
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrLookup)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LookupBlankPlaceSkipsQuery(t *testing.T) {
	repo, mock := newMockRepository(t)

	img, err := repo.Lookup(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Nil(t, img)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Upsert(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO "place_images" .* ON CONFLICT \("name"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	n, err := repo.Upsert(context.Background(), []PlaceImage{
		{Name: "Bangkok", URL: "https://example.com/bkk.jpg"},
		{Name: "Krabi", URL: "https://example.com/krabi.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	n, err := repo.Upsert(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO "place_images"`).WillReturnError(errors.New("read-only"))

	_, err := repo.Upsert(context.Background(), []PlaceImage{{Name: "Pai", URL: "https://example.com/pai.jpg"}})
	assert.ErrorIs(t, err, ErrLookup)
}

func TestDisabled(t *testing.T) {
	img, err := Disabled{}.Lookup(context.Background(), "Bangkok")
	assert.NoError(t, err)
	assert.Nil(t, img)
}

func TestPlaceImage_TableName(t *testing.T) {
	assert.Equal(t, "place_images", PlaceImage{}.TableName())
}

func TestLoadSeed(t *testing.T) {
	doc := `
places:
  - name: " Chiang Mai "
    url: https://example.com/cm.jpg
    description: Old city temples.
  - name: Pai
    url: https://example.com/pai.jpg
`
	places, err := LoadSeed(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Chiang Mai", places[0].Name)
	assert.Equal(t, "Old city temples.", places[0].Description)
	assert.Equal(t, "Pai", places[1].Name)
	assert.Empty(t, places[1].Description)
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "places:\n  - url: https://example.com/a.jpg\n",
			want: "name is required",
		},
		{
			name: "missing url",
			doc:  "places:\n  - name: Krabi\n",
			want: "url is required",
		},
		{
			name: "duplicate ignoring case",
			doc:  "places:\n  - name: Krabi\n    url: a\n  - name: KRABI\n    url: b\n",
			want: "duplicates",
		},
		{
			name: "unknown field",
			doc:  "places:\n  - name: Krabi\n    url: a\n    rating: 5\n",
			want: "decode seed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSeed_Empty(t *testing.T) {
	places, err := LoadSeed(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, places)
}

func TestLoadSeed_ShippedFile(t *testing.T) {
	f, err := os.Open("../../configs/places.yaml")
	require.NoError(t, err)
	defer f.Close()

	places, err := LoadSeed(f)
	require.NoError(t, err)
	assert.NotEmpty(t, places)
}
