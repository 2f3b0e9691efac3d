package normalize

import (
	"errors"
	"testing"

	"github.com/grrywlsn/radioplex/station"
)

func TestStrings(t *testing.T) {
	testCases := []struct {
		name   string
		artist string
		title  string
		want   Key
	}{
		{"feat in brackets", "TobyMac", "Feel It (feat. Mortanda)", Key{"tobymac", "feel it"}},
		{"case only", "tobyMac", "Feel It", Key{"tobymac", "feel it"}},
		{"ampersand", "for KING & COUNTRY", "God Only Knows", Key{"for king and country", "god only knows"}},
		{"plus", "Zach Williams + Dolly Parton", "There Was Jesus", Key{"zach williams and dolly parton", "there was jesus"}},
		{"ft in artist", "Lauren Daigle ft. Jason Ingram", "Thank God I Do", Key{"lauren daigle", "thank god i do"}},
		{"featuring in title", "Crowder", "Good God Almighty featuring Somebody", Key{"crowder", "good god almighty"}},
		{"w slash", "Elevation Worship w/ Maverick City Music", "Jireh", Key{"elevation worship", "jireh"}},
		{"w slash o is not a credit", "Tenth Avenue North", "Life w/o You", Key{"tenth avenue north", "life w o you"}},
		{"surrounding whitespace", "  Switchfoot  ", "  Dare   You to Move ", Key{"switchfoot", "dare you to move"}},
		{"stacked brackets", "Casting Crowns", "Nobody (feat. Matthew West) [Radio Edit]", Key{"casting crowns", "nobody"}},
		{"trailing parenthetical", "Hillsong UNITED", "Oceans (Where Feet May Fail)", Key{"hillsong united", "oceans"}},
		{"internal apostrophe", "Matthew West", "Don't Stop Praying", Key{"matthew west", "don't stop praying"}},
		{"curly apostrophe", "Matthew West", "Don’t Stop Praying", Key{"matthew west", "don't stop praying"}},
		{"leading apostrophe", "Artist", "'Til the End", Key{"artist", "til the end"}},
		{"dotted artist", "P.O.D.", "Alive!", Key{"pod", "alive"}},
		{"dash separates words", "Crowder", "Good God Almighty - Radio Version", Key{"crowder", "good god almighty radio version"}},
		{"multiplication sign", "Chloe × Halle", "Do It", Key{"chloe x halle", "do it"}},
		{"title only brackets", "Artist", "(Untitled)", Key{"artist", "untitled"}},
		{"unclosed bracket", "We The Kingdom", "Holy Water (Live", Key{"we the kingdom", "holy water"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Strings(tc.artist, tc.title)
			if err != nil {
				t.Fatalf("Strings(%q, %q) returned error: %v", tc.artist, tc.title, err)
			}
			if got != tc.want {
				t.Errorf("Strings(%q, %q) = %+v, want %+v", tc.artist, tc.title, got, tc.want)
			}
		})
	}
}

func TestStringsEmpty(t *testing.T) {
	testCases := []struct {
		artist string
		title  string
	}{
		{"", "Song"},
		{"   ", "Song"},
		{"Artist", ""},
		{"Artist", "!!!"},
	}

	for _, tc := range testCases {
		if _, err := Strings(tc.artist, tc.title); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("Strings(%q, %q) error = %v, want ErrEmptyKey", tc.artist, tc.title, err)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	entries := []station.RawEntry{
		{Artist: "TobyMac", Title: "Feel It (feat. Mortanda)", Station: station.JourneyFM},
		{Artist: "for KING & COUNTRY", Title: "Joy.", Station: station.SpiritFM, Position: 3},
		{Artist: "Lauren Daigle", Title: "You Say", Station: station.SpiritFM},
	}

	for _, e := range entries {
		first, err1 := Normalize(e)
		second, err2 := Normalize(e)
		if first != second || !errors.Is(err1, err2) {
			t.Errorf("Normalize(%+v) not deterministic: %+v/%v vs %+v/%v", e, first, err1, second, err2)
		}
		// Normalizing an already normalized key changes nothing.
		again, err := Strings(first.Artist, first.Title)
		if err != nil || again != first {
			t.Errorf("Strings(%+v) = %+v, %v; want idempotent", first, again, err)
		}
	}
}

func TestKeyString(t *testing.T) {
	k := Key{Artist: "tobymac", Title: "feel it"}
	if k.String() != "tobymac|feel it" {
		t.Errorf("Expected 'tobymac|feel it', got %s", k.String())
	}
	if k.IsZero() {
		t.Error("Expected key to be non-zero")
	}
	if !(Key{Artist: "a"}).IsZero() {
		t.Error("Expected key without title to be zero")
	}
}

func TestDisplayKeepsStrippedText(t *testing.T) {
	e := station.RawEntry{Artist: " TobyMac ", Title: "Feel It  (feat. Mortanda)"}
	want := "TobyMac - Feel It (feat. Mortanda)"
	if got := Display(e); got != want {
		t.Errorf("Display() = %q, want %q", got, want)
	}
}
