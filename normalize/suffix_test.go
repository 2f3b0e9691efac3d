package normalize

import "testing"

// TestStripVersionSuffix covers the Jessie Ware "Spotlight - Single Edit" case
// and the other release variants libraries append.
func TestStripVersionSuffix(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"Spotlight - Single Edit", "Spotlight"},
		{"Spotlight - Edit", "Spotlight"},
		{"Spotlight - Radio Edit", "Spotlight"},
		{"Spotlight - Extended", "Spotlight"},
		{"Spotlight - Remix", "Spotlight"},
		{"Spotlight - Bonus Track", "Spotlight"},
		{"Spotlight", "Spotlight"}, // Should remain unchanged
		{"Song Title - Version", "Song Title"},
		{"Song Title - Live", "Song Title"},
		{"Song Title - Acoustic", "Song Title"},
		{"Song Title (Live)", "Song Title"},
		{"Song Title (RADIO EDIT)", "Song Title"},
		{"Good God Almighty – Radio Version", "Good God Almighty"},
		{"Never Let Go - From the Motion Picture The Shack", "Never Let Go"},
		{`Jesus Revolution - From "Jesus Revolution"`, "Jesus Revolution"},
		{"Live", "Live"},
		{"Live Like That", "Live Like That"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := StripVersionSuffix(tc.input)
			if result != tc.expected {
				t.Errorf("StripVersionSuffix(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}
