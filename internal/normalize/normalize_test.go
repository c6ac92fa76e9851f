package normalize

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
)

func catalog() entity.Tally {
	return entity.Tally{
		{Name: "Sport Drop", Items: []entity.ItemCount{{Name: "Sport Wheels", Count: 1}}},
		{Name: "Deluxe Drop", Items: []entity.ItemCount{{Name: "Deluxe Trail", Count: 2}}},
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"camel case", "importBody", "Import Body"},
		{"upper run", "XMLHttp", "Xml Http"},
		{"leading digits", "4 Deluxe Trail", "Deluxe Trail"},
		{"glued digits", "12deluxe trail", "Deluxe Trail"},
		{"quotes", `'"Exotic Topper"'`, "Exotic Topper"},
		{"punctuation", "  black   market   trail!! ", "Black Market Trail"},
		{"apostrophe title", "they're", "They'Re"},
		{"allowed symbols", "r&d x:y/z", "R&D X:Y/Z"},
		{"non ascii dropped", "Import Body™", "Import Body"},
		{"vertical tab", "import\vbody", "Import Body"},
		{"no-break space", "\u00a0sport\u00a0wheels\f", "Sport Wheels"},
		{"trailing digits kept", "Sport Wheels 2", "Sport Wheels 2"},
		{"split known item", "deluxetrail", "Deluxe Trail"},
		{"split known category", "SPORTDROP", "Sport Drop"},
		{"unknown glued word kept", "exoticbody", "Exoticbody"},
		{"empty", "", ""},
		{"only junk", `  ''  "" !!`, ""},
		{"junk exposed after cleaning", "abc' !", "Abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in, catalog()); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeWithoutCatalog(t *testing.T) {
	if got := Normalize("deluxetrail", nil); got != "Deluxetrail" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeIsStable(t *testing.T) {
	fixed := []string{
		"abc' !", "!3d", "'3'd", "O'Brien", "R&D 2", "x:y/z", "3rd", "aBC", "ÀBC",
		"deluxetrail", "  4 importBody ", "Black MarketTrail", "\"\"", "a\"b", "1 2 3",
		"\tSport\nWheels\r", "sportdrop'", "'0'0a",
	}
	for _, in := range fixed {
		once := Normalize(in, catalog())
		if twice := Normalize(once, catalog()); twice != once {
			t.Errorf("Normalize not stable for %q: %q -> %q", in, once, twice)
		}
	}

	alphabet := []string{"a", "B", "c", "D", " ", "  ", "1", "9", "'", "\"", "!", ":", "&", "/", "-", "\v",
		"deluxe", "trail", "Sport", "drop", "\t", "É"}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		var b strings.Builder
		for n := rng.Intn(12); n >= 0; n-- {
			b.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		in := b.String()
		once := Normalize(in, catalog())
		if twice := Normalize(once, catalog()); twice != once {
			t.Fatalf("Normalize not stable for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"hello world": "Hello World",
		"HELLO":       "Hello",
		"3rd":         "3Rd",
		"a-b":         "A-B",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}
