package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moviesCSV = `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
2,"Matrix, The (1999)",Action|Sci-Fi|Thriller
3,Untitled Project,(no genres listed)
`

const ratingsCSV = `userId,movieId,rating,timestamp
1,1,4.0,964982703
2,1,5.0,964982224
3,1,4.5,964981247
1,2,3.0,964982931
`

func TestReadMovies(t *testing.T) {
	records, err := ReadMovies(strings.NewReader(moviesCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 1, records[0].MLID)
	assert.Equal(t, "Toy Story", records[0].Title)
	require.NotNil(t, records[0].Year)
	assert.Equal(t, 1995, *records[0].Year)
	assert.Len(t, records[0].Genres, 5)

	assert.Equal(t, "The Matrix", records[1].Title)
	assert.Equal(t, 1999, *records[1].Year)

	assert.Nil(t, records[2].Year)
	assert.Empty(t, records[2].Genres)
}

func TestReadMoviesErrors(t *testing.T) {
	_, err := ReadMovies(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadMovies(strings.NewReader("id,name\n1,x\n"))
	assert.ErrorContains(t, err, "movieId")

	_, err = ReadMovies(strings.NewReader("movieId,title,genres\nabc,Foo (2000),Drama\n"))
	assert.ErrorContains(t, err, "第 2 行")
}

func TestReadMoviesDuplicateIDKeepsLast(t *testing.T) {
	data := "movieId,title,genres\n1,Alpha (2001),Action\n1,Alpha Redux (2001),Action\n"
	records, err := ReadMovies(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alpha Redux", records[0].Title)
}

func TestReadRatings(t *testing.T) {
	ratings, err := ReadRatings(strings.NewReader(ratingsCSV))
	require.NoError(t, err)
	require.Len(t, ratings, 2)

	assert.Equal(t, Rating{Average: 4.5, Count: 3}, ratings[1])
	assert.Equal(t, Rating{Average: 3.0, Count: 1}, ratings[2])
}

func TestReadRatingsRounding(t *testing.T) {
	data := "userId,movieId,rating,timestamp\n1,7,4.0,0\n2,7,4.0,0\n3,7,3.5,0\n"
	ratings, err := ReadRatings(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 3.83, ratings[7].Average)
}

func TestReadRatingsMalformed(t *testing.T) {
	_, err := ReadRatings(strings.NewReader("userId,movieId,rating,timestamp\n1,1,good,0\n"))
	assert.Error(t, err)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movies.csv"), []byte(moviesCSV), 0o644))

	records, err := LoadMovies(filepath.Join(dir, "movies.csv"))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = LoadMovies(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = LoadRatings(filepath.Join(dir, "ratings.csv"))
	assert.True(t, errors.Is(err, ErrNoRatings))
}
