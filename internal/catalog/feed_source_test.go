package catalog

import (
	"reflect"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>New Releases</title>
  <link>https://releases.example.com/</link>
  <item>
    <title>Ballerina</title>
    <link>https://releases.example.com/ballerina</link>
    <guid>ballerina-2025</guid>
    <category>Action</category>
    <category>Thriller</category>
    <pubDate>Fri, 06 Jun 2025 00:00:00 +0000</pubDate>
    <description><![CDATA[<p>An assassin <b>returns</b>.</p><img src="https://img.example.com/ballerina.jpg">]]></description>
  </item>
  <item>
    <title>Quiet Film</title>
    <link>https://releases.example.com/quiet</link>
    <enclosure url="https://img.example.com/quiet.png" type="image/png" length="1"/>
    <description>No images here</description>
  </item>
</channel>
</rss>`

func TestFeedDecoder(t *testing.T) {
	movies, err := FeedDecoder(nil)([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("len = %d, want 2", len(movies))
	}

	first := movies[0]
	if first.Title != "Ballerina" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Year != "2025" || first.ReleaseDate != "2025-06-06" {
		t.Errorf("Year = %q, ReleaseDate = %q", first.Year, first.ReleaseDate)
	}
	if !reflect.DeepEqual(first.Genre, []string{"Action", "Thriller"}) {
		t.Errorf("Genre = %v", first.Genre)
	}
	if first.Poster != "https://img.example.com/ballerina.jpg" {
		t.Errorf("Poster = %q, want first img in description", first.Poster)
	}
	if first.Banner != first.Poster {
		t.Errorf("Banner = %q, want poster fallback", first.Banner)
	}
	if first.TrailerLink != "https://releases.example.com/ballerina" {
		t.Errorf("TrailerLink = %q", first.TrailerLink)
	}
	if first.Rating != "0.0" {
		t.Errorf("Rating = %q, want 0.0", first.Rating)
	}

	second := movies[1]
	if second.Poster != "https://img.example.com/quiet.png" {
		t.Errorf("Poster = %q, want enclosure url", second.Poster)
	}
	if first.ID == second.ID || first.ID == "" {
		t.Errorf("ids should be distinct and non-empty: %q %q", first.ID, second.ID)
	}
}

func TestFeedDecoder_StableIDs(t *testing.T) {
	a, _ := FeedDecoder(nil)([]byte(sampleRSS))
	b, _ := FeedDecoder(nil)([]byte(sampleRSS))
	if a[0].ID != b[0].ID {
		t.Errorf("ids differ between decodes: %q vs %q", a[0].ID, b[0].ID)
	}
}

func TestFeedDecoder_InvalidFeed(t *testing.T) {
	if _, err := FeedDecoder(nil)([]byte("not a feed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestImageSources(t *testing.T) {
	got := imageSources(`<p>x</p><img alt="a" src="https://a/1.jpg"/><div><IMG SRC="https://a/2.jpg"></div><img>`)
	want := []string{"https://a/1.jpg", "https://a/2.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("imageSources = %v, want %v", got, want)
	}
	if got := imageSources(""); got != nil {
		t.Errorf("imageSources(\"\") = %v, want nil", got)
	}
}
