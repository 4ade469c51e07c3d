package catalog

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/hitoshi/movieverse/internal/model"
)

func ids(movies []model.Movie) []string {
	out := make([]string, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.ID)
	}
	return out
}

func sampleMovies() []model.Movie {
	return []model.Movie{
		{ID: "1", Title: "Ballerina", Year: "2025", Rating: "7.2", Genre: []string{"Action", "Thriller"}, Description: "An assassin"},
		{ID: "2", Title: "Paddington", Year: "2014", Rating: "0.0", Genre: []string{"family", "Comedy"}},
		{ID: "3", Title: "Dune", Year: "2021", Rating: "8.0", Genre: []string{"Sci-Fi"}, Description: "Desert planet"},
		{ID: "4", Title: "Unknown Year", Year: "TBA", Rating: "n/a", Genre: []string{"ACTION"}},
		{ID: "5", Title: "Dune Part Two", Year: "2024", Rating: "8.0", Genre: []string{"sci-fi"}},
	}
}

func TestFilterByGenre(t *testing.T) {
	got := ids(FilterByGenre(sampleMovies(), "action"))
	want := []string{"1", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterByGenre(action) = %v, want %v", got, want)
	}
	if got := FilterByGenre(sampleMovies(), "  "); len(got) != 0 {
		t.Errorf("FilterByGenre(blank) = %v, want empty", ids(got))
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"dune", []string{"3", "5"}},
		{"DESERT", []string{"3"}},
		{"comedy", []string{"2"}},
		{"sci", []string{"3", "5"}},
		{"", []string{}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ids(Search(sampleMovies(), tt.query))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearchTitles_IgnoresDescription(t *testing.T) {
	if got := SearchTitles(sampleMovies(), "desert"); len(got) != 0 {
		t.Errorf("SearchTitles(desert) = %v, want empty", ids(got))
	}
}

func TestSuggest_CapsAtFive(t *testing.T) {
	var movies []model.Movie
	for i := 0; i < 8; i++ {
		movies = append(movies, model.Movie{ID: fmt.Sprint(i), Title: fmt.Sprintf("Star %d", i)})
	}
	got := Suggest(movies, "star")
	if len(got) != SuggestionLimit {
		t.Fatalf("len = %d, want %d", len(got), SuggestionLimit)
	}
	if got[0].ID != "0" || got[4].ID != "4" {
		t.Errorf("Suggest should keep catalog order, got %v", ids(got))
	}
}

func TestSortByYearDesc(t *testing.T) {
	movies := sampleMovies()
	got := ids(SortByYearDesc(movies))
	want := []string{"1", "5", "3", "2", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByYearDesc = %v, want %v", got, want)
	}
	if movies[0].ID != "1" || movies[1].ID != "2" {
		t.Error("SortByYearDesc must not modify its input")
	}
}

func TestTopRated(t *testing.T) {
	got := ids(TopRated(sampleMovies()))
	want := []string{"3", "5", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopRated = %v, want %v", got, want)
	}
}

func TestGenres(t *testing.T) {
	got := Genres(sampleMovies())
	want := []string{"Action", "Comedy", "Family", "Sci-fi", "Thriller"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Genres = %v, want %v", got, want)
	}
}

func TestRelated(t *testing.T) {
	movies := sampleMovies()
	got := ids(Related(movies, movies[2]))
	want := []string{"5", "1", "2", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Related(Dune) = %v, want %v", got, want)
	}
}

func TestFindByTitle(t *testing.T) {
	m, ok := FindByTitle(sampleMovies(), "dune part two")
	if !ok || m.ID != "5" {
		t.Errorf("FindByTitle = %v, %v; want id 5", m.ID, ok)
	}
	if _, ok := FindByTitle(sampleMovies(), "Dun"); ok {
		t.Error("FindByTitle should require an exact title")
	}
}

func TestByIDs_CatalogOrder(t *testing.T) {
	got := ids(ByIDs(sampleMovies(), []string{"5", "missing", "1"}))
	want := []string{"1", "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ByIDs = %v, want %v", got, want)
	}
}

func TestYearAndRatingValue(t *testing.T) {
	tests := []struct {
		year   string
		rating string
		wantY  int
		wantR  float64
	}{
		{"2023", "7.5", 2023, 7.5},
		{"2023-05-01", "8.1/10", 2023, 8.1},
		{"", "", 0, 0},
		{"TBA", "n/a", 0, 0},
		{" 1999 ", "9", 1999, 9},
	}
	for _, tt := range tests {
		m := model.Movie{Year: tt.year, Rating: tt.rating}
		if got := YearValue(m); got != tt.wantY {
			t.Errorf("YearValue(%q) = %d, want %d", tt.year, got, tt.wantY)
		}
		if got := RatingValue(m); got != tt.wantR {
			t.Errorf("RatingValue(%q) = %v, want %v", tt.rating, got, tt.wantR)
		}
	}
}
