package domain

import "testing"

func TestStripSuffix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"generic location suffix", "강남역점", "강남"},
		{"known suffix 본점", "명동교자본점", "명동교자"},
		{"known suffix 직영점", "새마을식당직영점", "새마을식당"},
		{"known suffix 지점", "바다횟집지점", "바다횟집"},
		{"known suffix 분점", "할매국밥분점", "할매국밥"},
		{"generic rule never eats first syllables", "역전점", "역전점"},
		{"no suffix", "을지면옥", "을지면옥"},
		{"latin name untouched", "Starbucks", "Starbucks"},
		{"latin prefix kept", "CU편의점", "CU"},
		{"marker after latin only", "ABC점", "ABC점"},
		{"only one rule applies", "서울역점본점", "서울역점"},
		{"generic run may include 본", "서울본점점", "서울"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripSuffix(tt.input); got != tt.expected {
				t.Errorf("StripSuffix(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"whitespace removed", "명동 교자", "명동교자"},
		{"case folded", "BurGer King", "burgerking"},
		{"suffix after whitespace removal", "명동교자 본점", "명동교자"},
		{"tabs and newlines", "을지\t면옥\n", "을지면옥"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.expected {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"강남역점",
		"명동교자 본점",
		"서울본점점",
		"본점본점",
		"스타벅스 강남역점",
		"BurGer King",
		"Ｆｕｌｌｗｉｄｔｈ",
		"",
		"   ",
	}

	for _, in := range inputs {
		once := NormalizeName(in)
		twice := NormalizeName(once)
		if once != twice {
			t.Errorf("NormalizeName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsNameMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "을지면옥", "을지면옥", true},
		{"branch qualifier on provider side", "명동교자", "명동교자 본점", true},
		{"branch qualifier on source side", "명동교자 본점", "명동교자", true},
		{"substring either way", "스타벅스", "스타벅스 강남역점", true},
		{"case and spacing", "burger king", "BURGERKING", true},
		{"different names", "을지면옥", "평양면옥", false},
		{"empty never matches", "", "을지면옥", false},
		{"both empty", " ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNameMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("IsNameMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
