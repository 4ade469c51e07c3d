package model

// Movie はカタログ上の1作品を表す。
// ソースのフィールド名の揺れは catalog.Normalize で吸収済み。
type Movie struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Year               string   `json:"year"`
	Genre              []string `json:"genre"`
	Rating             string   `json:"rating"`
	Cast               []string `json:"cast"`
	Poster             string   `json:"poster"`
	Banner             string   `json:"banner"`
	Description        string   `json:"description"`
	EnglishDescription string   `json:"englishDescription"`
	TrailerLink        string   `json:"trailerLink"`
	DownloadLink       string   `json:"downloadLink"`
	Gallery            []string `json:"gallery"`
	ReleaseDate        string   `json:"releaseDate"`
	Director           string   `json:"director,omitempty"`
	Duration           string   `json:"duration,omitempty"`
	Quality            string   `json:"quality,omitempty"`
	Language           string   `json:"language,omitempty"`
}
